package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// CallbackHandler reacts to inline-button presses on sent notifications.
type CallbackHandler struct {
	api Sender
	log logrus.FieldLogger
}

func NewCallbackHandler(api Sender, log logrus.FieldLogger) *CallbackHandler {
	return &CallbackHandler{api: api, log: log}
}

// Handle processes one update. "delete_message" deletes the message carrying
// the button; every callback query is answered, even when deleting fails.
func (h *CallbackHandler) Handle(_ context.Context, update tgbotapi.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	switch query.Data {
	case DeleteMessageData:
		h.deleteMessage(query)
	default:
		h.log.WithField("data", query.Data).Warn("Unknown callback")
	}

	if _, err := h.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.log.WithError(err).Warn("⚠️ Failed to answer callback")
	}
}

func (h *CallbackHandler) deleteMessage(query *tgbotapi.CallbackQuery) {
	if query.Message == nil || query.Message.Chat == nil {
		h.log.Warn("⚠️ Delete requested for an inaccessible message")
		return
	}

	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		h.log.WithFields(logrus.Fields{"chat_id": chatID, "message_id": messageID}).
			WithError(err).Warn("⚠️ Failed to delete message")
		return
	}
	h.log.WithFields(logrus.Fields{"chat_id": chatID, "message_id": messageID}).Info("🗑️ Message deleted")
}

// Listen handles updates until ctx is done or the channel closes, each in
// its own goroutine. It returns after in-flight handlers finish.
func (h *CallbackHandler) Listen(ctx context.Context, updates <-chan tgbotapi.Update) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Handle(ctx, update)
			}()
		}
	}
}

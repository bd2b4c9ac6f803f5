package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"laborx-notifier/internal/scraper"
)

const DeleteMessageData = "delete_message"

// Sender is the part of *tgbotapi.BotAPI the bot needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return api, nil
}

// Notifier sends one message per admin for every new listing.
type Notifier struct {
	api          Sender
	adminIDs     []int64
	deleteButton bool
	limiter      *rate.Limiter
	log          logrus.FieldLogger
}

// NewNotifier throttles sends to one per interval to stay clear of 429s; a
// zero interval disables throttling.
func NewNotifier(api Sender, adminIDs []int64, deleteButton bool, interval time.Duration, log logrus.FieldLogger) *Notifier {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Notifier{
		api:          api,
		adminIDs:     adminIDs,
		deleteButton: deleteButton,
		limiter:      rate.NewLimiter(limit, 1),
		log:          log,
	}
}

// Notify sends the listing to every admin. A failed send is logged and does
// not stop the others; all failures are returned joined.
func (n *Notifier) Notify(ctx context.Context, listing scraper.Listing) error {
	text := FormatListing(listing)
	keyboard := n.keyboard(listing)

	n.log.WithField("url", listing.URL).Info("📨 Sending message to admins")

	var errs []error
	for _, adminID := range n.adminIDs {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(adminID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = keyboard

		if _, err := n.api.Send(msg); err != nil {
			n.log.WithFields(logrus.Fields{"chat_id": adminID, "url": listing.URL}).
				WithError(err).Error("⚠️ Failed to send message")
			errs = append(errs, fmt.Errorf("chat %d: %w", adminID, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) keyboard(listing scraper.Listing) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("User Profile", listing.PosterURL),
			tgbotapi.NewInlineKeyboardButtonURL("Job Link", listing.URL),
		),
	}
	if n.deleteButton {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Delete Message", DeleteMessageData),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// FormatListing renders the HTML message body. Every value is escaped so
// posting content cannot inject markup.
func FormatListing(l scraper.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(l.Title))
	fmt.Fprintf(&b, "<i>%s</i>\n\n", html.EscapeString(l.Description))
	fmt.Fprintf(&b, "<b>Publish Date:</b> %s\n", html.EscapeString(l.PublishDate))
	fmt.Fprintf(&b, "<b>End Date:</b> %s\n", html.EscapeString(l.EndDate))
	fmt.Fprintf(&b, "<b>Price:</b> %s\n\n", html.EscapeString(l.Price))
	fmt.Fprintf(&b, "<b>Skills:</b> %s", html.EscapeString(strings.Join(l.Skills, ", ")))
	return b.String()
}

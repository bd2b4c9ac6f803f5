package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Requester is the raw-endpoint part of *tgbotapi.BotAPI. setWebhook goes
// through it because tgbotapi.WebhookConfig has no secret_token field.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// RegisterWebhook points Telegram at link. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery. Only callback
// queries are requested.
func RegisterWebhook(api Requester, link, secret string) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return fmt.Errorf("invalid webhook url %q: %w", link, err)
	}
	wh.AllowedUpdates = []string{"callback_query"}

	params := tgbotapi.Params{"url": wh.URL.String()}
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", wh.AllowedUpdates); err != nil {
		return err
	}

	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

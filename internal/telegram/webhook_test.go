package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	endpoint string
	params   tgbotapi.Params
	err      error
}

func (f *fakeRequester) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.endpoint, f.params = endpoint, params
	if f.err != nil {
		return nil, f.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestRegisterWebhook(t *testing.T) {
	api := &fakeRequester{}

	require.NoError(t, RegisterWebhook(api, "https://bot.example.com/webhook/telegram", "s3cret"))

	assert.Equal(t, "setWebhook", api.endpoint)
	assert.Equal(t, "https://bot.example.com/webhook/telegram", api.params["url"])
	assert.Equal(t, "s3cret", api.params["secret_token"])
	assert.Equal(t, `["callback_query"]`, api.params["allowed_updates"])
}

func TestRegisterWebhook_Errors(t *testing.T) {
	assert.Error(t, RegisterWebhook(&fakeRequester{}, "://no-scheme", "s"))
	assert.Error(t, RegisterWebhook(&fakeRequester{err: errors.New("401 Unauthorized")}, "https://bot.example.com/hook", "s"))
}

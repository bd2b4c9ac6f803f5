package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laborx-notifier/internal/pipeline"
)

type fakeLifecycle struct {
	running bool
}

func (f *fakeLifecycle) Start() error {
	if f.running {
		return pipeline.ErrAlreadyRunning
	}
	f.running = true
	return nil
}

func (f *fakeLifecycle) Stop() error {
	if !f.running {
		return pipeline.ErrNotRunning
	}
	f.running = false
	return nil
}

func (f *fakeLifecycle) Running() bool { return f.running }

type fakeStatus struct {
	report *pipeline.CycleReport
	known  int
}

func (f *fakeStatus) LastCycle() (pipeline.CycleReport, bool) {
	if f.report == nil {
		return pipeline.CycleReport{}, false
	}
	return *f.report, true
}

func (f *fakeStatus) KnownCount() int { return f.known }

type recordingHandler struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (h *recordingHandler) Handle(_ context.Context, u tgbotapi.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

const testSecret = "hook-secret_1"

func newTestServer(t *testing.T, updates UpdateHandler) (*Server, *fakeLifecycle, *fakeStatus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := logtest.NewNullLogger()
	lc := &fakeLifecycle{}
	st := &fakeStatus{known: 7}
	var webhook *Webhook
	if updates != nil {
		webhook = &Webhook{Handler: updates, Secret: testSecret}
	}
	srv, err := New("0", lc, st, webhook, logger)
	require.NoError(t, err)
	return srv, lc, st
}

func do(srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestStatus(t *testing.T) {
	srv, lc, st := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["running"])
	assert.Equal(t, float64(7), body["known"])
	assert.NotContains(t, body, "last_cycle")

	lc.running = true
	st.report = &pipeline.CycleReport{ID: "c1", Found: 3, New: 1, Notified: 1}

	rec = do(srv, http.MethodGet, "/status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	last, ok := body["last_cycle"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", last["id"])
	assert.Equal(t, float64(3), last["found"])
}

func TestStartStop(t *testing.T) {
	srv, lc, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusConflict, do(srv, http.MethodPost, "/pipeline/stop", "").Code)

	assert.Equal(t, http.StatusAccepted, do(srv, http.MethodPost, "/pipeline/start", "").Code)
	assert.True(t, lc.running)

	rec := do(srv, http.MethodPost, "/pipeline/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), pipeline.ErrAlreadyRunning.Error())

	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/pipeline/stop", "").Code)
	assert.False(t, lc.running)
}

func TestWebhook(t *testing.T) {
	handler := &recordingHandler{}
	srv, _, _ := newTestServer(t, handler)

	body := `{"update_id": 10, "callback_query": {"id": "cb", "data": "delete_message",
		"message": {"message_id": 5, "date": 0, "chat": {"id": 42, "type": "private"}}}}`
	rec := do(srv, http.MethodPost, "/webhook/telegram", body, SecretHeader, testSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, handler.updates, 1)
	q := handler.updates[0].CallbackQuery
	require.NotNil(t, q)
	assert.Equal(t, "delete_message", q.Data)
	assert.Equal(t, int64(42), q.Message.Chat.ID)
	assert.Equal(t, 5, q.Message.MessageID)

	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodPost, "/webhook/telegram", "{not json", SecretHeader, testSecret).Code)
	assert.Len(t, handler.updates, 1)
}

func TestWebhookRejectsMissingOrWrongSecret(t *testing.T) {
	handler := &recordingHandler{}
	srv, _, _ := newTestServer(t, handler)

	forged := `{"update_id": 11, "callback_query": {"id": "cb", "data": "delete_message",
		"message": {"message_id": 777, "date": 0, "chat": {"id": 11111111, "type": "private"}}}}`

	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodPost, "/webhook/telegram", forged).Code)
	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodPost, "/webhook/telegram", forged, SecretHeader, "guess").Code)
	assert.Empty(t, handler.updates)
}

func TestNewRequiresWebhookSecret(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	_, err := New("0", &fakeLifecycle{}, &fakeStatus{}, &Webhook{Handler: &recordingHandler{}}, logger)
	assert.Error(t, err)
}

func TestWebhookDisabled(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodPost, "/webhook/telegram", "{}").Code)
}

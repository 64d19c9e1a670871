package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	analysis "github.com/farmsense/cava/backend/internal/analysis/extraction"
	"github.com/farmsense/cava/backend/internal/model/registration"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
	"github.com/farmsense/cava/backend/internal/service/session"
	"github.com/farmsense/cava/backend/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sessions, err := session.NewStore(session.Config{MaxSessions: 10, TTL: time.Hour}, logger)
	require.NoError(t, err)
	farmers := store.NewMemoryStore()
	svc := registrationService.NewService(analysis.NewRuleExtractor(nil), sessions, farmers, registrationService.Config{}, logger)

	r := chi.NewRouter()
	New(svc, nil, logger).RegisterRoutes(r)
	return r, farmers
}

func postMessage(t *testing.T, r http.Handler, sessionID, text string) (*httptest.ResponseRecorder, registrationService.Response) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"session_id": sessionID, "message_text": text})
	req := httptest.NewRequest(http.MethodPost, "/registration/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp registrationService.Response
	if rec.Code == http.StatusOK || rec.Code == http.StatusServiceUnavailable {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestPostMessagesRegistersFarmer(t *testing.T) {
	r, farmers := setupRouter(t)

	var resp registrationService.Response
	for _, text := range []string{"Peter", "Knaflič", "+38640123456", "Ljubljana", "corn"} {
		var rec *httptest.ResponseRecorder
		rec, resp = postMessage(t, r, "web-1", text)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.True(t, resp.RegistrationComplete)
	assert.Equal(t, registration.StateConfirming, resp.State)

	rec, resp := postMessage(t, r, "web-1", "yes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.FarmerID)
	assert.Equal(t, 1, farmers.Count())
	assert.Contains(t, rec.Body.String(), `"reply_text"`)
	assert.Contains(t, rec.Body.String(), `"extracted_fields"`)
}

func TestPostMessagesValidation(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/registration/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = postMessage(t, r, " ", "Peter")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"session_id is required"}`, rec.Body.String())
}

func TestPostMessagesPersistenceFailureIsRetryable(t *testing.T) {
	r, farmers := setupRouter(t)
	for _, text := range []string{"Peter", "Knaflič", "+38640123456", "Ljubljana", "corn"} {
		postMessage(t, r, "web-1", text)
	}

	farmers.FailWith(errors.New("database is locked"))
	rec, resp := postMessage(t, r, "web-1", "yes")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, resp.Retryable)
	assert.Equal(t, registration.StateConfirming, resp.State)
}

func TestSessionLifecycleRoutes(t *testing.T) {
	r, _ := setupRouter(t)
	postMessage(t, r, "web-1", "Peter")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration/sessions/web-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sess registration.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "Peter", sess.Profile.Get(registration.FirstName))
	assert.Equal(t, registration.LastName, sess.Asked)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/registration/sessions/web-1/complete", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/registration/sessions/web-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/registration/sessions/web-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocketConversation(t *testing.T) {
	r, _ := setupRouter(t)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/registration/ws/ws-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() registrationService.Response {
		t.Helper()
		var msg struct {
			Type string                       `json:"type"`
			Data registrationService.Response `json:"data"`
		}
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "result", msg.Type)
		return msg.Data
	}

	opening := read()
	assert.Contains(t, opening.ReplyText, "first name")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "text", "data": map[string]string{"text": "Peter"}}))
	resp := read()
	assert.Equal(t, "Peter", resp.ExtractedFields[registration.FirstName])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "reset"}))
	resp = read()
	assert.Empty(t, resp.ExtractedFields)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	var errMsg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, "error", errMsg.Type)
	assert.Equal(t, "unsupported message type", errMsg.Data["message"])
}

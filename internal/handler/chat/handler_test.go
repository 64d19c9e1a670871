package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/farmsense/cava/backend/internal/model/registration"
	chatservice "github.com/farmsense/cava/backend/internal/service/chat"
	"github.com/farmsense/cava/backend/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService()
	farmers := store.NewMemoryStore()
	if _, err := farmers.SaveFarmerRecord(context.Background(), registration.FarmerRecord{ID: "farmer-1", FirstName: "Peter"}); err != nil {
		t.Fatalf("SaveFarmerRecord err: %v", err)
	}
	handler := New(chatSvc, farmers)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSessionKnownFarmer(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/session", map[string]string{"farmerId": "farmer-1"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestCreateSessionUnknownFarmer(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/session", map[string]string{"farmerId": "non-existent"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateSessionMissingFarmerID(t *testing.T) {
	r, _ := setupRouter(t)

	resp := post(r, "/session", map[string]string{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSaveMessage(t *testing.T) {
	r, chatSvc := setupRouter(t)
	session, err := chatSvc.CreateSession(context.Background(), "farmer-1")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	resp := post(r, "/messages", map[string]string{"sessionId": session.ID, "sender": "user", "content": "hello"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}

	resp = post(r, "/messages", map[string]string{"sessionId": "missing", "sender": "user", "content": "hello"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSaveMessageRejectsUnknownSender(t *testing.T) {
	r, chatSvc := setupRouter(t)
	session, _ := chatSvc.CreateSession(context.Background(), "farmer-1")

	resp := post(r, "/messages", map[string]string{"sessionId": session.ID, "sender": "system", "content": "hello"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTranscriptAndEndSession(t *testing.T) {
	r, chatSvc := setupRouter(t)
	session, _ := chatSvc.CreateSession(context.Background(), "farmer-1")
	post(r, "/messages", map[string]string{"sessionId": session.ID, "sender": "user", "content": "When do I spray apples?"})

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var messages []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(messages) != 1 || messages[0]["content"] != "When do I spray apples?" {
		t.Fatalf("unexpected transcript: %v", messages)
	}

	req = httptest.NewRequest(http.MethodDelete, "/sessions/"+session.ID, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/messages", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after end, got %d", resp.Code)
	}
}

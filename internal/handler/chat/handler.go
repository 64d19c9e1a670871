package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmsense/cava/backend/internal/model/chat"
	chatService "github.com/farmsense/cava/backend/internal/service/chat"
	"github.com/farmsense/cava/backend/internal/store"
	"github.com/farmsense/cava/backend/pkg/utils"
)

// Handler serves advisor chat sessions for registered farmers.
type Handler struct {
	chatSvc *chatService.Service
	farmers store.FarmerRepository
}

// New creates a chat handler.
func New(chatSvc *chatService.Service, farmers store.FarmerRepository) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		farmers: farmers,
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/messages", h.handleSaveMessage)
	r.Get("/sessions/{sessionID}/messages", h.handleTranscript)
	r.Delete("/sessions/{sessionID}", h.handleEndSession)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FarmerID string `json:"farmerId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.FarmerID == "" {
		utils.RespondError(w, http.StatusBadRequest, "farmerId is required")
		return
	}

	if _, err := h.farmers.GetFarmer(r.Context(), payload.FarmerID); err != nil {
		if errors.Is(err, store.ErrFarmerNotFound) {
			utils.RespondError(w, http.StatusBadRequest, "farmer not found")
			return
		}
		utils.RespondError(w, http.StatusServiceUnavailable, "farmer store unavailable")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.FarmerID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Sender    string `json:"sender"`
		Content   string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := chat.Message{
		SessionID: payload.SessionID,
		Sender:    payload.Sender,
		Content:   payload.Content,
	}

	if err := h.chatSvc.SaveMessage(r.Context(), message); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package registration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/registration"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
	"github.com/farmsense/cava/backend/pkg/utils"
)

// Handler exposes the registration conversation over HTTP and WebSocket.
type Handler struct {
	svc      *registrationService.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a registration handler. checkOrigin may be nil to accept any
// origin.
func New(svc *registrationService.Service, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		svc:    svc,
		logger: logger.Named("registration_handler"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the registration routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/registration", func(rr chi.Router) {
		rr.Post("/messages", h.handleMessage)
		rr.Get("/sessions/{sessionID}", h.handleGetSession)
		rr.Delete("/sessions/{sessionID}", h.handleResetSession)
		rr.Post("/sessions/{sessionID}/complete", h.handleComplete)
		rr.Get("/ws/{sessionID}", h.handleWebSocket)
	})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload registrationService.Request
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.SessionID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	resp, err := h.svc.HandleMessage(r.Context(), payload)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, resp)
	case errors.Is(err, registration.ErrPersistenceUnavailable):
		// The reply still tells the user to confirm again.
		utils.RespondJSON(w, http.StatusServiceUnavailable, resp)
	default:
		h.logger.Error("registration turn failed", zap.String("session_id", payload.SessionID), zap.Error(err))
		utils.RespondError(w, statusFor(err), err.Error())
	}
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.svc.Session(chi.URLParam(r, "sessionID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Reset(chi.URLParam(r, "sessionID")) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Complete(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusServiceUnavailable {
			utils.RespondJSON(w, status, map[string]any{"error": err.Error(), "retryable": true})
			return
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, rec)
}

func statusFor(err error) int {
	var vErr *registration.ValidationError
	switch {
	case errors.Is(err, registration.ErrSessionIDRequired):
		return http.StatusBadRequest
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, registration.ErrNotConfirming):
		return http.StatusConflict
	case errors.Is(err, registration.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

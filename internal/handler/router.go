package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/handler/chat"
	"github.com/farmsense/cava/backend/internal/handler/farmer"
	"github.com/farmsense/cava/backend/internal/handler/registration"
	"github.com/farmsense/cava/backend/internal/handler/stream"
	middlewarePkg "github.com/farmsense/cava/backend/internal/middleware"
	"github.com/farmsense/cava/backend/internal/observability"
	aiService "github.com/farmsense/cava/backend/internal/service/ai"
	chatService "github.com/farmsense/cava/backend/internal/service/chat"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
	"github.com/farmsense/cava/backend/internal/store"
	"github.com/farmsense/cava/backend/pkg/utils"
)

// Dependencies are the services the HTTP API is built on. AI may be nil, in
// which case the advisor stream answers 503.
type Dependencies struct {
	Registration   *registrationService.Service
	Farmers        store.FarmerRepository
	Chat           *chatService.Service
	AI             *aiService.Service
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	registrationHandler := registration.New(deps.Registration, originChecker(deps.AllowedOrigins), logger)
	farmerHandler := farmer.New(deps.Farmers)
	chatHandler := chat.New(deps.Chat, deps.Farmers)

	var streamHandler *stream.Handler
	if deps.AI != nil {
		streamHandler = stream.New(deps.AI, deps.Chat, deps.Farmers, logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.Farmers.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		registrationHandler.RegisterRoutes(api)
		farmerHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if streamHandler == nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "advisor unavailable")
				return
			}
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			// Errors have already been sent to the client as SSE events.
			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				logger.Warn("stream request failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		})
	})

	return r
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

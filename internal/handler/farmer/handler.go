package farmer

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/farmsense/cava/backend/internal/store"
	"github.com/farmsense/cava/backend/pkg/utils"
)

// Handler serves registered farmer records.
type Handler struct {
	farmers store.FarmerRepository
}

// New creates a farmer handler.
func New(farmers store.FarmerRepository) *Handler {
	return &Handler{
		farmers: farmers,
	}
}

// RegisterRoutes mounts the farmer routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/farmers/{farmerID}", h.handleGetFarmer)
}

func (h *Handler) handleGetFarmer(w http.ResponseWriter, r *http.Request) {
	rec, err := h.farmers.GetFarmer(r.Context(), chi.URLParam(r, "farmerID"))
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, rec)
	case errors.Is(err, store.ErrFarmerNotFound):
		utils.RespondError(w, http.StatusNotFound, "farmer not found")
	default:
		utils.RespondError(w, http.StatusServiceUnavailable, "farmer store unavailable")
	}
}

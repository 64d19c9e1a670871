package farmer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/farmsense/cava/backend/internal/model/registration"
	"github.com/farmsense/cava/backend/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()
	farmers := store.NewMemoryStore()
	r := chi.NewRouter()
	New(farmers).RegisterRoutes(r)
	return r, farmers
}

func TestGetFarmer(t *testing.T) {
	r, farmers := setupRouter(t)
	rec := registration.FarmerRecord{
		ID:           "farmer-1",
		FirstName:    "Peter",
		LastName:     "Knaflič",
		PhoneNumber:  "+38640123456",
		FarmLocation: "Ljubljana",
		PrimaryCrops: "corn",
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if _, err := farmers.SaveFarmerRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveFarmerRecord err: %v", err)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/farmers/farmer-1", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got registration.FarmerRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LastName != "Knaflič" || got.PhoneNumber != "+38640123456" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestGetFarmerNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/farmers/missing", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetFarmerStoreDown(t *testing.T) {
	r, farmers := setupRouter(t)
	farmers.FailWith(errors.New("disk full"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/farmers/farmer-1", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

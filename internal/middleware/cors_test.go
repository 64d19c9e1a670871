package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func request(method, origin string) *http.Request {
	r := httptest.NewRequest(method, "/api/registration/messages", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestCORSWildcard(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(ok).ServeHTTP(rec, request(http.MethodGet, "https://farm.example"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSExplicitOriginGetsCredentials(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS([]string{"https://farm.example"})(ok).ServeHTTP(rec, request(http.MethodGet, "https://farm.example"))

	assert.Equal(t, "https://farm.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSUnknownOrigin(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS([]string{"https://farm.example"})(ok).ServeHTTP(rec, request(http.MethodGet, "https://evil.example"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(ok).ServeHTTP(rec, request(http.MethodOptions, "https://farm.example"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

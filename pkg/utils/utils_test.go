package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusNotFound, "farmer not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"farmer not found"}`, rec.Body.String())
}

func TestSSEWriters(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	SendSSEChunk(rec, rec, map[string]string{"event": "delta", "content": "Hi"})
	SendSSEEvent(rec, rec, "end", map[string]bool{"finished": true})

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"content\":\"Hi\",\"event\":\"delta\"}\n\nevent: end\ndata: {\"finished\":true}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestWriteJSON_MarshalFailureStaysJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	// Channels cannot be marshaled, forcing the fallback path.
	writeJSON(rec, 200, map[string]any{"ch": make(chan int)})

	check.Equal(t, 500, rec.Code)
	check.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	check.True(t, strings.Contains(rec.Body.String(), `"error"`))
}

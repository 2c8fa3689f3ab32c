package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentSync)

	l.WarnContext(context.Background(), "sync failed", FieldExpenseID, int64(3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sync", rec[FieldComponent])
	assert.Equal(t, "sync failed", rec["msg"])
	assert.EqualValues(t, 3, rec[FieldExpenseID])
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})

	h := middleware.RequestID(Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ComponentHTTP, FromContext(r.Context()).Component())
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.EqualValues(t, http.StatusTeapot, rec[FieldStatusCode])
	assert.Equal(t, "WARN", rec["level"])
	assert.NotEmpty(t, rec[FieldRequestID])
}

func TestFromContextFallsBack(t *testing.T) {
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

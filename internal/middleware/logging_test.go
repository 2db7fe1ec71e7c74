// internal/middleware/logging_test.go

package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()

	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/lobbies", nil))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, "/api/lobbies", entry.Data["path"])
	assert.Equal(t, http.MethodGet, entry.Data["method"])
	assert.Equal(t, len("short and stout"), entry.Data["bytes"])
}

func TestLogMiddlewareDefaultsAndServerErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()

	quiet := LogMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	quiet.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])

	failing := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/avatar", nil))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWebSocketLifecycleLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogWebSocketConnect(logger, "10.0.0.1:5000", "/ws")
	LogWebSocketDisconnect(logger, "10.0.0.1:5000", "/ws", errors.New("read failed"))

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WebSocket connected", entries[0].Message)
	assert.Equal(t, "WebSocket disconnected", entries[1].Message)
	assert.EqualError(t, entries[1].Data["error"].(error), "read failed")
}

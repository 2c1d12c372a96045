package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

// capturingLogger records every entry written through the context variants.
type capturingLogger struct {
	NoOpLogger
	mu      sync.Mutex
	entries []logEntry
}

func (c *capturingLogger) record(level, msg string, fields map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (c *capturingLogger) InfoWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("info", msg, fields)
}

func (c *capturingLogger) WarnWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("warn", msg, fields)
}

func (c *capturingLogger) ErrorWithContext(_ context.Context, msg string, fields map[string]interface{}) {
	c.record("error", msg, fields)
}

func serveStatus(t *testing.T, logger Logger, devMode bool, status int, target string) {
	t.Helper()
	h := LoggingMiddleware(logger, devMode)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	tests := []struct {
		name    string
		devMode bool
		status  int
		level   string
		msg     string
	}{
		{"server error", false, http.StatusInternalServerError, "error", "HTTP request error"},
		{"client error", false, http.StatusNotFound, "warn", "HTTP request client error"},
		{"success in dev mode", true, http.StatusOK, "info", "HTTP request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &capturingLogger{}
			serveStatus(t, logger, tt.devMode, tt.status, "/products?category=food")

			require.Len(t, logger.entries, 1)
			e := logger.entries[0]
			assert.Equal(t, tt.level, e.level)
			assert.Equal(t, tt.msg, e.msg)
			assert.Equal(t, tt.status, e.fields["status"])
			assert.Equal(t, "/products", e.fields["path"])
			assert.Equal(t, "category=food", e.fields["query"])
		})
	}
}

func TestLoggingMiddleware_QuietOnSuccess(t *testing.T) {
	logger := &capturingLogger{}
	serveStatus(t, logger, false, http.StatusOK, "/health")

	assert.Empty(t, logger.entries)
}

func TestLoggingMiddleware_ImplicitStatus(t *testing.T) {
	logger := &capturingLogger{}
	h := LoggingMiddleware(logger, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	assert.Equal(t, "ok", rec.Body.String())
	require.Len(t, logger.entries, 1)
	assert.Equal(t, http.StatusOK, logger.entries[0].fields["status"])
}

func TestLoggingMiddleware_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		serveStatus(t, nil, true, http.StatusTeapot, "/")
	})
}

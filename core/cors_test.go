package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"empty origin", "", []string{"*"}, false},
		{"wildcard", "https://anything.dev", []string{"*"}, true},
		{"exact match", "https://shop.example.com", []string{"https://shop.example.com"}, true},
		{"exact mismatch", "https://evil.com", []string{"https://shop.example.com"}, false},
		{"subdomain wildcard", "https://store.example.com", []string{"https://*.example.com"}, true},
		{"nested subdomain wildcard", "https://a.b.example.com", []string{"https://*.example.com"}, true},
		{"bare domain does not match subdomain wildcard", "https://example.com", []string{"https://*.example.com"}, false},
		{"suffix trick rejected", "https://evilexample.com", []string{"https://*.example.com"}, false},
		{"scheme must match", "http://store.example.com", []string{"https://*.example.com"}, false},
		{"port wildcard", "http://localhost:3000", []string{"http://localhost:*"}, true},
		{"port wildcard other host", "http://127.0.0.1:3000", []string{"http://localhost:*"}, false},
		{"second pattern matches", "http://localhost:5173", []string{"https://shop.example.com", "http://localhost:*"}, true},
		{"no patterns", "http://localhost:3000", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isOriginAllowed(tt.origin, tt.allowed))
		})
	}
}

func corsHandler(cfg *CORSConfig) (http.Handler, *bool) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return CORSMiddleware(cfg)(next), &called
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	h, called := corsHandler(&CORSConfig{Enabled: false, AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, *called, "disabled CORS passes every request through")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_NilConfig(t *testing.T) {
	h, called := corsHandler(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.True(t, *called)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	cfg := DefaultConfig().HTTP.CORS
	cfg.Enabled = true
	cfg.AllowedOrigins = []string{"http://localhost:*"}
	cfg.AllowCredentials = true
	h, called := corsHandler(&cfg)

	req := httptest.NewRequest(http.MethodOptions, "/cart/items", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, *called, "preflight is answered by the middleware")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	cfg := &CORSConfig{Enabled: true, AllowedOrigins: []string{"https://shop.example.com"}}
	h, called := corsHandler(cfg)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Origin", "https://evil.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, *called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

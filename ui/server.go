package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/storefront"
	"github.com/openmarket/marketplace/telemetry"
)

// Server serves the storefront over HTTP.
type Server struct {
	name   string
	ctrl   *storefront.Controller
	cfg    *core.Config
	logger core.Logger
	srv    *http.Server
}

// NewServer builds the HTTP server for ctrl using cfg's address, timeouts
// and CORS policy.
func NewServer(cfg *core.Config, ctrl *storefront.Controller, logger core.Logger) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("http")
	}

	s := &Server{name: cfg.Name, ctrl: ctrl, cfg: cfg, logger: logger}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return s
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)

	mux.HandleFunc("GET /session", s.getSession)
	mux.HandleFunc("POST /session/login", s.login)
	mux.HandleFunc("POST /session/signup", s.signup)
	mux.HandleFunc("POST /session/logout", s.logout)

	mux.HandleFunc("GET /products", s.listProducts)
	mux.HandleFunc("POST /products", s.addProduct)
	mux.HandleFunc("GET /products/{id}", s.getProduct)
	mux.HandleFunc("PUT /products/{id}", s.updateProduct)
	mux.HandleFunc("DELETE /products/{id}", s.deleteProduct)

	mux.HandleFunc("GET /cart", s.getCart)
	mux.HandleFunc("POST /cart/items", s.addCartItem)
	mux.HandleFunc("PATCH /cart/items/{id}", s.updateCartItem)
	mux.HandleFunc("DELETE /cart/items/{id}", s.deleteCartItem)
	mux.HandleFunc("POST /cart/checkout", s.checkout)

	mux.HandleFunc("GET /notification", s.getNotification)
	mux.HandleFunc("GET /catalog/options", s.catalogOptions)

	var h http.Handler = mux
	h = core.LoggingMiddleware(s.logger, s.cfg.Development.Enabled)(h)
	h = core.CORSMiddleware(&s.cfg.HTTP.CORS)(h)
	h = telemetry.TracingMiddleware(s.name, "/health")(h)
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down within the
// configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{
			"address": s.srv.Addr,
		})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down", map[string]interface{}{
		"timeout": timeout.String(),
	})
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Package marketplace assembles the storefront service: configuration,
// logging, storage, telemetry, the state controller and the HTTP server.
// Most callers only need NewApp; the sub-packages can be used directly:
//   - github.com/openmarket/marketplace/core - config, logging, storage
//   - github.com/openmarket/marketplace/storefront - the state controller
//   - github.com/openmarket/marketplace/ui - the HTTP API
package marketplace

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/storefront"
	"github.com/openmarket/marketplace/telemetry"
	"github.com/openmarket/marketplace/ui"
)

// Re-export core types
type (
	Config     = core.Config
	Option     = core.Option
	Logger     = core.Logger
	Storage    = core.Storage
	Controller = storefront.Controller
	SaveResult = storefront.SaveResult
)

// Re-export core functions
var (
	NewConfig      = core.NewConfig
	DefaultConfig  = core.DefaultConfig
	WithName       = core.WithName
	WithPort       = core.WithPort
	WithAddress    = core.WithAddress
	WithNamespace  = core.WithNamespace
	WithCORS       = core.WithCORS
	WithStorage    = core.WithStorage
	WithRedisURL   = core.WithRedisURL
	WithSQLitePath = core.WithSQLitePath
	WithTelemetry  = core.WithTelemetry
	WithRetry      = core.WithRetry
	WithLoginDelay = core.WithLoginDelay
	WithLogLevel   = core.WithLogLevel
	WithLogFormat  = core.WithLogFormat
	WithConfigFile = core.WithConfigFile

	WithDevelopmentMode = core.WithDevelopmentMode
	WithCircuitBreaker  = core.WithCircuitBreaker
)

// HealthCheckInterval is how often Serve probes the storage backend.
const HealthCheckInterval = 30 * time.Second

// App is a fully wired storefront service.
type App struct {
	Config     *core.Config
	Logger     core.Logger
	Storage    core.Storage
	Telemetry  *telemetry.Provider
	Controller *storefront.Controller
}

// NewApp opens storage, starts telemetry, builds the controller and loads
// the saved state. On error everything opened so far is closed again.
func NewApp(ctx context.Context, cfg *core.Config, logger core.Logger) (*App, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	storage, err := core.NewStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	tp, err := telemetry.New(ctx, cfg.Telemetry,
		telemetry.WithDevelopment(cfg.Development.Enabled),
		telemetry.WithServiceVersion(Version),
		telemetry.WithLogger(logger),
	)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	opts := append(storefront.FromConfig(cfg),
		storefront.WithLogger(logger),
		storefront.WithTelemetry(tp),
	)
	ctrl := storefront.New(storage, opts...)

	app := &App{
		Config:     cfg,
		Logger:     logger,
		Storage:    storage,
		Telemetry:  tp,
		Controller: ctrl,
	}

	if err := ctrl.Load(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// Serve runs the HTTP server and the storage health watcher until ctx is
// cancelled or either of them fails.
func (a *App) Serve(ctx context.Context) error {
	server := ui.NewServer(a.Config, a.Controller, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		a.watchHealth(gctx, HealthCheckInterval)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) watchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := a.Controller.Health(ctx)
			switch {
			case err != nil && healthy:
				a.Logger.WarnWithContext(ctx, "Storage became unhealthy", map[string]interface{}{
					"provider": a.Config.Storage.Provider,
					"error":    err.Error(),
				})
			case err == nil && !healthy:
				a.Logger.InfoWithContext(ctx, "Storage recovered", map[string]interface{}{
					"provider": a.Config.Storage.Provider,
				})
			}
			healthy = err == nil
		}
	}
}

// Close stops the controller, flushes telemetry and closes storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Controller.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package marketplace

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmarket/marketplace/catalog"
	"github.com/openmarket/marketplace/core"
	"github.com/openmarket/marketplace/session"
)

func TestNewAppPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg, err := NewConfig(
		WithStorage("sqlite"),
		WithSQLitePath(filepath.Join(t.TempDir(), "market.db")),
		core.WithLoginDelay(0),
	)
	require.NoError(t, err)

	app, err := NewApp(ctx, cfg, nil)
	require.NoError(t, err)

	_, res, err := app.Controller.Login(ctx, session.LoginCredentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.True(t, res.OK())
	_, _, err = app.Controller.AddProduct(ctx, catalog.ProductDraft{Name: "Mug", Price: "9.99"})
	require.NoError(t, err)
	require.NoError(t, app.Close(ctx))

	restarted, err := NewApp(ctx, cfg, nil)
	require.NoError(t, err)
	defer restarted.Close(ctx)

	assert.Equal(t, "alice", restarted.Controller.Session().Username)
	products, err := restarted.Controller.Products(catalog.CategoryAll)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "9.99", products[0].Price.StringFixed(2))
}

func TestNewAppUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Provider = "floppy"

	_, err := NewApp(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg, err := NewConfig(WithStorage("memory"), WithPort(port), WithAddress("127.0.0.1"))
	require.NoError(t, err)

	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

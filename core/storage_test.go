package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageContract exercises the behavior every Storage backend shares.
func runStorageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key reads empty", func(t *testing.T) {
		v, err := s.Get(ctx, "absent")
		require.NoError(t, err)
		assert.Empty(t, v)

		ok, err := s.Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "auth", "alice"))

		v, err := s.Get(ctx, "auth")
		require.NoError(t, err)
		assert.Equal(t, "alice", v)

		ok, err := s.Exists(ctx, "auth")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("set overwrites wholesale", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "cart", `[{"id":"a","quantity":2}]`))
		require.NoError(t, s.Set(ctx, "cart", `[]`))

		v, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		assert.Equal(t, `[]`, v)
	})

	t.Run("empty value is stored", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "products", ""))

		ok, err := s.Exists(ctx, "products")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("delete many keys", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "auth", "bob"))
		require.NoError(t, s.Set(ctx, "products", "[]"))
		require.NoError(t, s.Delete(ctx, "auth", "products", "never-written"))

		for _, key := range []string{"auth", "products"} {
			ok, err := s.Exists(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, key)
		}
		require.NoError(t, s.Delete(ctx))
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, s.HealthCheck(ctx))
	})
}

func TestNewStorage(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Provider = "memory"

		s, err := NewStorage(cfg, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &MemoryStorage{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "nested", "market.db")

		s, err := NewStorage(cfg, nil)
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStorage{}, s)
	})

	t.Run("redis without url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Provider = "redis"

		_, err := NewStorage(cfg, nil)
		assert.ErrorIs(t, err, ErrMissingConfiguration)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Storage.Provider = "floppy"

		_, err := NewStorage(cfg, nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

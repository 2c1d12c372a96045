package core

import (
	"fmt"
)

// NewStorage creates the Storage backend selected by cfg.Storage.Provider.
func NewStorage(cfg *Config, logger Logger) (Storage, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}

	switch cfg.Storage.Provider {
	case "memory":
		m := NewMemoryStorage(cfg.Namespace)
		m.SetLogger(logger)
		return m, nil
	case "sqlite":
		return NewSQLiteStorage(cfg.Storage.SQLitePath, cfg.Namespace, logger)
	case "redis":
		return NewRedisStorage(RedisStorageOptions{
			RedisURL:  cfg.Storage.RedisURL,
			DB:        cfg.Storage.RedisDB,
			Namespace: cfg.Namespace,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q: %w", cfg.Storage.Provider, ErrInvalidConfiguration)
	}
}

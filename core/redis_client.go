// Package core provides the shared plumbing of the marketplace service.
// This file implements the Redis-backed storage used when several
// processes share one storefront state.
//
// Keys are namespaced so that one Redis instance can hold several
// storefronts side by side:
//
//	marketplace:auth
//	marketplace:products
//	marketplace:cart
//
// Usage:
//
//	storage, err := NewRedisStorage(RedisStorageOptions{
//	    RedisURL:  "redis://localhost:6379",
//	    DB:        RedisDBStorefront,
//	    Namespace: "marketplace",
//	})
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisDBStorefront is the default Redis DB for storefront slots.
// DB 0 is left to whatever else shares the instance.
const RedisDBStorefront = 2

// RedisStorage implements Storage on top of go-redis
type RedisStorage struct {
	client    *redis.Client
	dbID      int
	namespace string
	logger    Logger
}

// RedisStorageOptions configures the Redis storage
type RedisStorageOptions struct {
	RedisURL    string
	DB          int    // Redis DB number for isolation (0-15)
	Namespace   string // Key namespace for organization
	DialTimeout time.Duration
	Logger      Logger // Optional logger
}

// NewRedisStorage connects to Redis and verifies the connection with a ping
func NewRedisStorage(opts RedisStorageOptions) (*RedisStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	if opts.RedisURL == "" {
		logger.Error("Failed to initialize Redis storage", map[string]interface{}{
			"error":      "Redis URL is required",
			"error_type": "ErrMissingConfiguration",
		})
		return nil, fmt.Errorf("redis URL is required: %w", ErrMissingConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	// Override DB for isolation
	if opts.DB >= 0 && opts.DB <= 15 {
		redisOpt.DB = opts.DB
	}

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return newRedisStorage(redis.NewClient(redisOpt), opts.DB, opts.Namespace, timeout, logger)
}

// NewRedisStorageFromClient wraps an existing client. Used by tests
// against miniredis.
func NewRedisStorageFromClient(client *redis.Client, namespace string, logger Logger) (*RedisStorage, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return newRedisStorage(client, client.Options().DB, namespace, 5*time.Second, logger)
}

func newRedisStorage(client *redis.Client, db int, namespace string, timeout time.Duration, logger Logger) (*RedisStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         db,
			"namespace":  namespace,
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %w", db, ErrConnectionFailed)
	}

	logger.Info("Redis storage connected", map[string]interface{}{
		"db":        db,
		"namespace": namespace,
	})

	return &RedisStorage{
		client:    client,
		dbID:      db,
		namespace: namespace,
		logger:    logger,
	}, nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	r.logger.Info("Closing Redis storage connection", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})

	err := r.client.Close()
	if err != nil {
		r.logger.Error("Failed to close Redis storage", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
	}
	return err
}

// GetNamespace returns the namespace being used
func (r *RedisStorage) GetNamespace() string {
	return r.namespace
}

func (r *RedisStorage) formatKey(key string) string {
	return namespacedKey(r.namespace, key)
}

// Get retrieves a value. A missing key is not an error.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.formatKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", r.wrap("redis.Get", key, err)
	}
	return val, nil
}

// Set stores a value without expiry
func (r *RedisStorage) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, r.formatKey(key), value, 0).Err(); err != nil {
		return r.wrap("redis.Set", key, err)
	}
	return nil
}

// Delete removes all given keys in a single pipeline
func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, r.formatKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return r.wrap("redis.Delete", "", err)
	}
	return nil
}

// Exists checks if a key exists
func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	if err != nil {
		return false, r.wrap("redis.Exists", key, err)
	}
	return n > 0, nil
}

// HealthCheck verifies Redis connectivity
func (r *RedisStorage) HealthCheck(ctx context.Context) error {
	r.logger.DebugWithContext(ctx, "Performing Redis health check", map[string]interface{}{
		"db":        r.dbID,
		"namespace": r.namespace,
	})

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logger.ErrorWithContext(ctx, "Redis health check failed", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
		})
		return r.wrap("redis.HealthCheck", "", err)
	}
	return nil
}

func (r *RedisStorage) wrap(op, key string, err error) error {
	return &MarketError{
		Op:      op,
		Kind:    "storage",
		ID:      key,
		Message: err.Error(),
		Err:     fmt.Errorf("%v: %w", err, ErrStorageUnavailable),
	}
}

// namespacedKey prefixes key with namespace when one is set
func namespacedKey(namespace, key string) string {
	if namespace != "" {
		return fmt.Sprintf("%s:%s", namespace, key)
	}
	return key
}

package core

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Nothing survives a restart; it backs tests and the development profile.
type MemoryStorage struct {
	mu        sync.RWMutex
	store     map[string]string
	namespace string
	logger    Logger
}

// NewMemoryStorage creates a new in-memory store
func NewMemoryStorage(namespace string) *MemoryStorage {
	return &MemoryStorage{
		store:     make(map[string]string),
		namespace: namespace,
		logger:    &NoOpLogger{},
	}
}

// SetLogger configures the logger for this memory store
func (m *MemoryStorage) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

func (m *MemoryStorage) formatKey(key string) string {
	return namespacedKey(m.namespace, key)
}

// Get retrieves a value from memory
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.store[m.formatKey(key)]
	m.logger.DebugWithContext(ctx, "Storage get", map[string]interface{}{
		"operation": "storage_get",
		"key":       key,
		"hit":       exists,
	})
	return value, nil
}

// Set stores a value in memory, replacing any previous value
func (m *MemoryStorage) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.DebugWithContext(ctx, "Storage set", map[string]interface{}{
		"operation":  "storage_set",
		"key":        key,
		"value_size": len(value),
	})

	m.store[m.formatKey(key)] = value
	return nil
}

// Delete removes values from memory
func (m *MemoryStorage) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.store, m.formatKey(key))
	}

	m.logger.DebugWithContext(ctx, "Storage delete", map[string]interface{}{
		"operation": "storage_delete",
		"keys":      keys,
	})
	return nil
}

// Exists checks if a key exists in memory
func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.store[m.formatKey(key)]
	return exists, nil
}

// HealthCheck always succeeds for memory storage
func (m *MemoryStorage) HealthCheck(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}

// Len returns the number of stored keys. Used by tests.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

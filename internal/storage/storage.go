// Package storage defines the durable key/value medium behind the session
// store, plus an in-memory implementation for tests and throwaway runs.
//
// The session store needs very little from its medium: read a string by key,
// write a handful of keys together, and delete keys. Keeping the interface
// that small is what lets SQLite, an in-memory map, or a browser-like
// localStorage shim sit behind it interchangeably.
package storage

import (
	"context"
	"sync"
)

// Storage is an opaque string key/value store.
//
// SetMany must apply all pairs or none, as far as the medium allows; the
// session store relies on it to never expose a token without its user.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Memory is a map guarded by a mutex. A single lock around every call makes
// SetMany trivially all-or-nothing.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Storage = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

package kv

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
)

type (
	// Store persists step output values under string keys
	Store interface {
		Put(ctx context.Context, key string, value any) error
		Get(ctx context.Context, key string) (any, error)
		Keys(ctx context.Context) ([]string, error)
		Close() error
	}

	// Memory is a process-local Store
	Memory struct {
		data map[string]any
		mu   sync.RWMutex
	}
)

var (
	ErrKeyRequired = errors.New("key is required")
	ErrNotFound    = errors.New("key not found")
)

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		data: map[string]any{},
	}
}

func (m *Memory) Put(_ context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}

// Keys returns the stored keys in sorted order
func (m *Memory) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data)), nil
}

func (m *Memory) Close() error {
	return nil
}

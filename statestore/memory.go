package statestore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. State does not survive the process, so it
// suits tests and hosts that handle restart continuity some other way.
type Memory struct {
	mu     sync.RWMutex
	scopes map[string]map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{scopes: make(map[string]map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, blob []byte, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scopes[scope] == nil {
		m.scopes[scope] = make(map[string][]byte)
	}
	m.scopes[scope][key] = append([]byte(nil), blob...)
	return nil
}

func (m *Memory) Get(_ context.Context, key, scope string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.scopes[scope][key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

func (m *Memory) Remove(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes[scope], key)
	return nil
}

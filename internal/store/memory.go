package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Memory is a Collection held in a process-local map. Records are stored
// as JSON so callers never share mutable state with the collection.
type Memory[T any] struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{data: make(map[string][]byte)}
}

func (m *Memory[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	raw, ok := m.data[id]
	m.mu.RUnlock()

	var v T
	if !ok {
		return v, ErrNotFound
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", id, err)
	}
	return v, nil
}

func (m *Memory[T]) Create(_ context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; ok {
		return ErrExists
	}
	m.data[id] = raw
	return nil
}

func (m *Memory[T]) Put(_ context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}
	m.mu.Lock()
	m.data[id] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *Memory[T]) List(_ context.Context, filter func(T) bool) ([]T, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raws := make([][]byte, len(ids))
	for i, id := range ids {
		raws[i] = m.data[id]
	}
	m.mu.RUnlock()

	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", ids[i], err)
		}
		if filter == nil || filter(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory[T]) Update(_ context.Context, id string, fn func(*T) error) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var v T
	raw, ok := m.data[id]
	if !ok {
		return v, ErrNotFound
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", id, err)
	}
	if err := fn(&v); err != nil {
		return v, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("encoding %s: %w", id, err)
	}
	m.data[id] = raw
	return v, nil
}

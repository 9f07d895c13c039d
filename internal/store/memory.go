package store

import (
	"context"
	"sync"
)

// Memory keeps the table in process. It is meant for tests and local runs.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]*Item
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]*Item)}
}

func (m *Memory) Get(_ context.Context, key string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[key]
	if !ok {
		return nil, nil
	}
	out := &Item{Key: key}
	if row.UserHashes != nil {
		out.UserHashes = append([]string{}, row.UserHashes...)
	}
	if row.Visits != nil {
		v := *row.Visits
		out.Visits = &v
	}
	return out, nil
}

func (m *Memory) AppendUserHash(_ context.Context, key, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.row(key)
	row.UserHashes = append(row.UserHashes, hash)
	return nil
}

func (m *Memory) IncrementVisits(_ context.Context, key string, delta int64) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.row(key)
	if row.Visits == nil {
		row.Visits = new(int64)
	}
	*row.Visits += delta
	v := *row.Visits
	return &v, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// row must be called with mu held for writing.
func (m *Memory) row(key string) *Item {
	row, ok := m.rows[key]
	if !ok {
		row = &Item{Key: key}
		m.rows[key] = row
	}
	return row
}

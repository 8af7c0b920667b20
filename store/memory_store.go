package store

import (
	"context"
	"sync"

	"github.com/sardine-ai/go-remote-records/model"
)

// MemoryStore is an in-memory LocalStore. It never fails.
type MemoryStore struct {
	sync.RWMutex
	data []model.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: []model.Record{}}
}

func (m *MemoryStore) GetData(_ context.Context) ([]model.Record, error) {
	m.RLock()
	defer m.RUnlock()
	return model.Clone(m.data), nil
}

func (m *MemoryStore) SaveData(_ context.Context, records []model.Record) error {
	fresh := model.Clone(records)
	m.Lock()
	m.data = fresh
	m.Unlock()
	return nil
}

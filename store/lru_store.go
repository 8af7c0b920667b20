package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sardine-ai/go-remote-records/model"
)

// LRUStore is a bounded LocalStore keyed by record ID. A save collapses
// duplicate IDs to their last occurrence and keeps only the newest size
// records; GetData returns the survivors oldest first.
type LRUStore struct {
	mu    sync.RWMutex
	cache *lru.Cache[int, model.Record]
}

func NewLRUStore(size int) (*LRUStore, error) {
	cache, err := lru.New[int, model.Record](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: cache}, nil
}

func (l *LRUStore) GetData(_ context.Context) ([]model.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := l.cache.Keys()
	records := make([]model.Record, 0, len(keys))
	for _, id := range keys {
		if record, ok := l.cache.Peek(id); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func (l *LRUStore) SaveData(_ context.Context, records []model.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Purge()
	for _, record := range records {
		// Remove first so a repeated ID moves to the newest position.
		l.cache.Remove(record.ID)
		l.cache.Add(record.ID, record)
	}
	return nil
}

// Len returns the number of cached records.
func (l *LRUStore) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cache.Len()
}

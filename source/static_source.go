package source

import (
	"context"
	"sync"

	"github.com/sardine-ai/go-remote-records/model"
)

// StaticSource serves a fixed batch held in memory. It stands in for a real
// remote origin in wiring defaults and tests.
type StaticSource struct {
	sync.RWMutex
	Name string
	data []model.Record
	err  error
}

// NewStaticSource returns a StaticSource preloaded with the default batch.
func NewStaticSource(name string) *StaticSource {
	return &StaticSource{
		Name: name,
		data: []model.Record{
			{ID: 1, Content: "Remote Data 1"},
			{ID: 2, Content: "Remote Data 2"},
		},
	}
}

// GetName returns the name of the source.
func (s *StaticSource) GetName() string {
	return s.Name
}

// GetData returns a copy of the configured batch, or the configured error.
func (s *StaticSource) GetData(ctx context.Context) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFetchError(s.Name, err)
	}
	s.RLock()
	defer s.RUnlock()
	if s.err != nil {
		return nil, model.NewFetchError(s.Name, s.err)
	}
	return model.Clone(s.data), nil
}

// SetData replaces the batch returned by later GetData calls.
func (s *StaticSource) SetData(records []model.Record) {
	s.Lock()
	s.data = model.Clone(records)
	s.Unlock()
}

// SetError makes later GetData calls fail with err. A nil err restores
// normal operation.
func (s *StaticSource) SetError(err error) {
	s.Lock()
	s.err = err
	s.Unlock()
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sardine-ai/go-remote-records/source"
	"github.com/sardine-ai/go-remote-records/store"
	"github.com/sirupsen/logrus"
)

// Repository answers "give me the current data".
type Repository interface {
	FetchData(ctx context.Context) ([]model.Record, error)
}

// DataRepository fetches from a RemoteSource, caches the result in a
// LocalStore and returns what the store holds afterwards.
type DataRepository struct {
	Remote  source.RemoteSource
	Local   store.LocalStore
	Timeout time.Duration // Bounds the remote call; zero means no bound

	// mu serializes save/read pairs so concurrent fetches never interleave.
	mu sync.Mutex
}

// Option configures a DataRepository.
type Option func(*DataRepository)

// WithTimeout bounds every remote call. A deadline surfaces as a
// *model.FetchError wrapping context.DeadlineExceeded.
func WithTimeout(d time.Duration) Option {
	return func(r *DataRepository) {
		r.Timeout = d
	}
}

func New(remote source.RemoteSource, local store.LocalStore, opts ...Option) *DataRepository {
	r := &DataRepository{Remote: remote, Local: local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchData runs one fetch cycle, strictly in this order:
//  1. Remote.GetData; on failure the error is returned and the store is untouched.
//  2. Local.SaveData with the remote result.
//  3. Local.GetData, whose result is returned.
//
// No retry and no fallback to the stale cache. A store failure is returned
// as is.
func (r *DataRepository) FetchData(ctx context.Context) ([]model.Record, error) {
	log := logrus.WithContext(ctx).WithField("source", r.Remote.GetName())

	// Network I/O happens outside the lock
	remote, err := r.getRemote(ctx)
	if err != nil {
		log.WithError(err).Debug("remote fetch failed")
		return nil, err
	}
	log.WithField("count", len(remote)).Debug("remote fetch done")

	// Save and re-read as one step
	r.mu.Lock()
	defer r.mu.Unlock()

	// Never save a result whose caller already gave up.
	if err := ctx.Err(); err != nil {
		log.WithError(err).Debug("fetch abandoned before save")
		return nil, err
	}

	if err := r.Local.SaveData(ctx, remote); err != nil {
		log.WithError(err).Error("error saving records")
		return nil, err
	}

	// Callers get the store's view, not the raw remote batch
	records, err := r.Local.GetData(ctx)
	if err != nil {
		log.WithError(err).Error("error reading records")
		return nil, err
	}
	log.WithField("count", len(records)).Debug("records cached")
	return records, nil
}

func (r *DataRepository) getRemote(ctx context.Context) ([]model.Record, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	records, err := r.Remote.GetData(ctx)
	if err != nil {
		return nil, model.NewFetchError(r.Remote.GetName(), err)
	}
	return records, nil
}

// Package store holds the local caches a repository writes fetched records
// into and reads them back from.
package store

import (
	"context"

	"github.com/sardine-ai/go-remote-records/model"
)

// LocalStore caches the most recently fetched batch.
//
// SaveData replaces the whole content; it never merges with what was there.
// GetData returns a copy of the current content, so a caller never sees it
// change under its feet.
type LocalStore interface {
	GetData(ctx context.Context) ([]model.Record, error)
	SaveData(ctx context.Context, records []model.Record) error
}

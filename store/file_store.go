package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/sardine-ai/go-remote-records/model"
	"github.com/sirupsen/logrus"
)

// FileStore persists the snapshot as a YAML document on disk. Writes go to a
// temporary file that is renamed over the target, so a crash never leaves a
// half written snapshot. A missing file reads as an empty snapshot.
type FileStore struct {
	sync.RWMutex
	Path string
}

func NewFileStore(path string) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		logrus.WithError(err).Error("error getting absolute path")
		return nil, err
	}
	return &FileStore{Path: abs}, nil
}

func (f *FileStore) GetData(_ context.Context) ([]model.Record, error) {
	f.RLock()
	defer f.RUnlock()

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, &model.StoreError{Op: "read", Err: err}
	}
	records, err := model.Decode(data)
	if err != nil {
		return nil, &model.StoreError{Op: "decode", Err: err}
	}
	return records, nil
}

func (f *FileStore) SaveData(_ context.Context, records []model.Record) error {
	data, err := model.Encode(records)
	if err != nil {
		return &model.StoreError{Op: "encode", Err: err}
	}

	f.Lock()
	defer f.Unlock()

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &model.StoreError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return &model.StoreError{Op: "save", Err: err}
	}
	return nil
}

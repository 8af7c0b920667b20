package model

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every *FetchError through errors.Is.
	ErrFetch = errors.New("fetch failed")
	// ErrStore matches every *StoreError through errors.Is.
	ErrStore = errors.New("store failed")
)

// FetchError reports that a remote source could not produce data.
type FetchError struct {
	Source string
	Err    error
}

// NewFetchError wraps err unless it already is a *FetchError.
func NewFetchError(source string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Source: source, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// StoreError reports that a persistent local store failed an operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

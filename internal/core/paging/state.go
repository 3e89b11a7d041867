package paging

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidPageSize is returned when a page size below 1 is requested.
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrNotInitialized is returned when a loader is used before it was initialized.
	ErrNotInitialized = errors.New("loader not initialized")
)

// State is a snapshot of a loader's collection.
//
// For index loaders Cursor is the exclusive upper index of the next window; for log
// loaders it is the highest block the next backward scan will cover.
type State[T any] struct {
	Items       []T
	LoadedCount int
	Total       int
	TotalKnown  bool
	Cursor      uint64
	IsLoading   bool
	IsExhausted bool
	Err         error
}

// Len returns the number of items in the snapshot.
func (s State[T]) Len() int {
	return len(s.Items)
}

func (s State[T]) clone() State[T] {
	s.Items = slices.Clone(s.Items)
	if s.Items == nil {
		s.Items = []T{}
	}
	return s
}

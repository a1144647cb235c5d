// Package store provides the document collections the services persist
// their records in. Every collection offers the same capability set so the
// in-memory implementation and the SQLite one are interchangeable.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("record not found")

	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("record already exists")
)

// Collection is a keyed set of records of one type.
type Collection[T any] interface {
	// Get returns the record stored under id or ErrNotFound.
	Get(ctx context.Context, id string) (T, error)

	// Create inserts the record only if id is free, otherwise it returns
	// ErrExists and leaves the stored record alone.
	Create(ctx context.Context, id string, v T) error

	// Put inserts or replaces the record stored under id.
	Put(ctx context.Context, id string, v T) error

	// Delete removes the record stored under id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the records accepted by filter, ordered by id.
	// A nil filter accepts everything.
	List(ctx context.Context, filter func(T) bool) ([]T, error)

	// Update applies fn to the record stored under id and persists the
	// result. The read, fn and the write happen atomically with respect to
	// other calls on the same collection. If fn returns an error nothing
	// is written and the error is returned unchanged.
	Update(ctx context.Context, id string, fn func(*T) error) (T, error)
}

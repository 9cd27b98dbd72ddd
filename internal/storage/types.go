// Package storage persists the watcher's memory document.
//
// A store only moves bytes; decoding and schema migration live in
// internal/memory. Each backend holds exactly one document.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Store is the minimal persistence API used by the memory layer.
type Store interface {
	// Load returns the stored document. ok is false when nothing has been
	// saved yet.
	Load(ctx context.Context) (data []byte, ok bool, err error)
	// Save replaces the stored document. On error the previous document
	// is still in place.
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": one JSON file (default)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

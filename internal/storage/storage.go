package storage

import (
	"github.com/IshaanNene/chatprobe/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of records.
	Store(recs []*types.Record) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

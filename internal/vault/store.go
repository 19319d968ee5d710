package vault

import (
	"context"
	"errors"
	"fmt"
)

// StorageError wraps a failure to read or write the persisted mapping store.
// A Pseudonymize call that surfaces a StorageError has rolled back its
// in-memory entry; retrying the call is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("vault storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrNotFound is returned by Resolve for a pseudonym this vault never issued.
var ErrNotFound = errors.New("pseudonym not found")

// Store persists the source→pseudonym mapping. The store only ever grows:
// entries are written once and never mutated or deleted, so Load followed by
// per-entry Put is sufficient for every backend.
//
// The persisted mapping is the sole re-identification key for the whole
// system. Backends must treat it as sensitive and must never log source
// identifiers.
type Store interface {
	// Load reads the full persisted mapping. A store that has never been
	// written returns an empty map, not an error.
	Load(ctx context.Context) (map[string]string, error)

	// Put durably records one mapping. It must not return until the entry
	// would survive a process restart.
	Put(ctx context.Context, sourceID, pseudonymID string) error

	// Close releases backend resources.
	Close() error
}

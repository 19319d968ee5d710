// Package vault maps source document identifiers to stable pseudonymous
// identifiers and persists the mapping so identity survives process
// restarts. Pseudonyms are random (never derived from the source
// identifier), so the mapping store is the only path back to the original.
package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes the vault's persistence retry policy.
type Options struct {
	// MaxRetries bounds how many times a failed Put is retried before the
	// in-memory entry is rolled back and a StorageError surfaces.
	MaxRetries int
	// RetryDelay is the pause between persistence retries.
	RetryDelay time.Duration
}

// DefaultOptions returns the retry policy used when Options is zero-valued.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		RetryDelay: 250 * time.Millisecond,
	}
}

// Vault owns the identifier mapping for a process. All mutations are
// serialized through the vault's mutex: "check if the source is known, else
// create and persist" is a single critical section, so two concurrent
// callers can never mint two pseudonyms for the same source identifier.
// Lookups of already-resolved identifiers take only a read lock, since the
// mapping grows and existing entries are never rewritten.
type Vault struct {
	mu      sync.RWMutex
	forward map[string]string // source id -> pseudonym
	reverse map[string]string // pseudonym -> source id
	store   Store
	opts    Options
	logger  *zap.Logger
}

// New constructs a vault backed by store, loading any previously persisted
// mapping in full before the first Pseudonymize call. An empty store is not
// an error.
func New(ctx context.Context, store Store, opts Options, logger *zap.Logger) (*Vault, error) {
	if opts.MaxRetries <= 0 {
		opts = DefaultOptions()
	}

	mapping, err := store.Load(ctx)
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}

	v := &Vault{
		forward: make(map[string]string, len(mapping)),
		reverse: make(map[string]string, len(mapping)),
		store:   store,
		opts:    opts,
		logger:  logger,
	}
	for src, pseud := range mapping {
		v.forward[src] = pseud
		v.reverse[pseud] = src
	}

	logger.Info("identifier vault loaded",
		zap.Int("mappings", len(v.forward)),
	)
	return v, nil
}

// Pseudonymize returns the stable pseudonym for sourceID, minting, persisting
// and recording a new one on first sight. The new entry is not committed
// until the store write succeeds: on persistence failure the entry is rolled
// back and a StorageError returned, so a later retry of the same sourceID
// cannot observe a different pseudonym.
func (v *Vault) Pseudonymize(ctx context.Context, sourceID string) (string, error) {
	v.mu.RLock()
	pseud, ok := v.forward[sourceID]
	v.mu.RUnlock()
	if ok {
		return pseud, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Another caller may have won the race between the read and write locks.
	if pseud, ok := v.forward[sourceID]; ok {
		return pseud, nil
	}

	pseud = v.mintLocked()
	v.forward[sourceID] = pseud
	v.reverse[pseud] = sourceID

	if err := v.persistLocked(ctx, sourceID, pseud); err != nil {
		delete(v.forward, sourceID)
		delete(v.reverse, pseud)
		return "", err
	}

	v.logger.Debug("pseudonym issued",
		zap.String("pseudonym", pseud),
		zap.Int("total_mappings", len(v.forward)),
	)
	return pseud, nil
}

// Resolve maps a pseudonym back to its source identifier. This is the
// re-identification path and is privileged: ordinary pipeline code must not
// call it. It exists as a separately named operation so access can be
// confined to an explicit entry point (cmd/vaultctl).
func (v *Vault) Resolve(pseudonymID string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	src, ok := v.reverse[pseudonymID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, pseudonymID)
	}
	return src, nil
}

// Len returns the number of recorded mappings.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.forward)
}

// Close releases the backing store.
func (v *Vault) Close() error {
	return v.store.Close()
}

// mintLocked generates a fresh random pseudonym. Pseudonyms are 128-bit
// random UUIDs in canonical text form; a collision with an already-issued
// pseudonym is astronomically unlikely but checked against the reverse index
// and regenerated anyway, because a reassigned pseudonym would break the
// bijection.
func (v *Vault) mintLocked() string {
	for {
		pseud := uuid.NewString()
		if _, taken := v.reverse[pseud]; !taken {
			return pseud
		}
	}
}

// persistLocked writes one entry through the store with bounded retries.
func (v *Vault) persistLocked(ctx context.Context, sourceID, pseud string) error {
	var err error
	for attempt := 1; attempt <= v.opts.MaxRetries; attempt++ {
		if err = v.store.Put(ctx, sourceID, pseud); err == nil {
			return nil
		}

		v.logger.Warn("vault persist failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", v.opts.MaxRetries),
			zap.Error(err),
		)

		if attempt == v.opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return &StorageError{Op: "put", Err: ctx.Err()}
		case <-time.After(v.opts.RetryDelay):
		}
	}
	return &StorageError{Op: "put", Err: err}
}

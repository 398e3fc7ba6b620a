package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"
)

// PebbleMedium keeps blobs in an embedded Pebble key/value store, for single
// node deployments that want durability without an external database.
type PebbleMedium struct {
	db *pebble.DB
}

// NewPebbleMedium opens (or creates) the Pebble directory at path.
func NewPebbleMedium(path string) (*PebbleMedium, error) {
	return NewPebbleMediumWithOptions(path, &pebble.Options{})
}

// NewPebbleMediumWithOptions opens Pebble with caller supplied options, e.g. an
// in-memory vfs for tests.
func NewPebbleMediumWithOptions(path string, opts *pebble.Options) (*PebbleMedium, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("pebble path is required")
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleMedium{db: db}, nil
}

// Get copies the value out of Pebble before releasing it.
func (p *PebbleMedium) Get(_ context.Context, key string) ([]byte, error) {
	val, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// Set writes the blob with fsync.
func (p *PebbleMedium) Set(_ context.Context, key string, value []byte) error {
	return p.db.Set([]byte(key), value, pebble.Sync)
}

// Close flushes and closes the store.
func (p *PebbleMedium) Close() error {
	return p.db.Close()
}

// SetBatch commits all entries as one Pebble batch.
func (p *PebbleMedium) SetBatch(_ context.Context, entries []Entry) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, e := range entries {
		if err := batch.Set([]byte(e.Key), e.Value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

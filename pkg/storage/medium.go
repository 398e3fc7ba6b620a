// Package storage holds the blob mediums the record store persists into. A
// medium is a flat key/value space of opaque byte blobs, the server-side
// stand-in for a browser's localStorage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("blob not found")

// Medium stores whole blobs under string keys.
type Medium interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ClosableMedium is a Medium owning resources that must be released.
type ClosableMedium interface {
	Medium
	io.Closer
}

// Entry is one key/value pair of a batch write.
type Entry struct {
	Key   string
	Value []byte
}

// Batcher is implemented by mediums that can write several blobs atomically.
type Batcher interface {
	SetBatch(ctx context.Context, entries []Entry) error
}

// SetAll writes entries through Batcher when m supports it, otherwise one by
// one in order. The sequential path can stop halfway on error.
func SetAll(ctx context.Context, m Medium, entries []Entry) error {
	if b, ok := m.(Batcher); ok {
		return b.SetBatch(ctx, entries)
	}
	for _, e := range entries {
		if err := m.Set(ctx, e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

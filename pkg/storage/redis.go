package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "forbias:blob:"

// RedisMedium keeps each blob in a Redis string under a key prefix.
type RedisMedium struct {
	client *redis.Client
	prefix string
}

// NewRedisMedium builds a Redis-backed medium.
func NewRedisMedium(addr, password, prefix string) (*RedisMedium, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisMedium{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}, nil
}

// Get fetches the blob for key.
func (r *RedisMedium) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores the blob for key without expiry.
func (r *RedisMedium) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

// Close releases the connection pool.
func (r *RedisMedium) Close() error {
	return r.client.Close()
}

// SetBatch writes all entries in one MULTI/EXEC transaction.
func (r *RedisMedium) SetBatch(ctx context.Context, entries []Entry) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, r.prefix+e.Key, e.Value, 0)
		}
		return nil
	})
	return err
}

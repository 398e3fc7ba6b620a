package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 10000

// RedisStreamConfig configures RedisStreamPublisher.
type RedisStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher connects lazily; the first Publish surfaces dial errors.
// MaxLen defaults to 10000 entries.
func NewRedisStreamPublisher(cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("events stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &RedisStreamPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Publish appends ev as one stream entry, trimming the stream to about MaxLen.
func (p *RedisStreamPublisher) Publish(ctx context.Context, ev Event) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":           ev.Type,
			"message_id":     ev.MessageID,
			"recipient_name": ev.RecipientName,
			"likes":          strconv.Itoa(ev.Likes),
			"at":             ev.At.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

// Close releases the Redis connection pool.
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

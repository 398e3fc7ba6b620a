package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request identified by key may proceed. When it may
// not, wait is how long until the key has quota again; zero means unknown.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, wait time.Duration)
}

var (
	_ Limiter = (*FixedWindowLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
)

func normalizeKey(key string) string {
	if key == "" {
		return "unknown"
	}
	return key
}

// Package store keeps message records and the per-browser liked-set as two
// JSON blobs in a storage medium.
package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"forbias/pkg/domain"
	"forbias/pkg/storage"
)

const (
	// DefaultMessagesKey holds the serialized message collection.
	DefaultMessagesKey = "messages"
	// DefaultLikedKey holds the serialized liked-set of a browser.
	DefaultLikedKey = "likedMessages"
)

// Repository is the record store contract consumed by the app layer.
type Repository interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Message, error)
	ListAll(ctx context.Context) []domain.Message
	ListByRecipient(ctx context.Context, name string) []domain.Message
	Get(ctx context.Context, id string) (domain.Message, bool)
	Like(ctx context.Context, id string) (domain.Message, LikeOutcome, error)
	HasLiked(ctx context.Context, id string) bool
}

// LikeOutcome reports what a Like call did.
type LikeOutcome int

const (
	// LikeUnknown means no record has the id; nothing was written.
	LikeUnknown LikeOutcome = iota
	// LikeCounted means the like was added.
	LikeCounted
	// LikeDuplicate means the view had already liked the record.
	LikeDuplicate
)

// Found reports whether the record exists.
func (o LikeOutcome) Found() bool { return o != LikeUnknown }

func (o LikeOutcome) String() string {
	switch o {
	case LikeCounted:
		return "counted"
	case LikeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Store implements Repository over a storage.Medium. The zero value is not
// usable; build one with New.
type Store struct {
	medium      storage.Medium
	messagesKey string
	likedBase   string
	likedKey    string
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger
	mu          *sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithMessagesKey overrides the key of the message collection blob.
func WithMessagesKey(key string) Option {
	return func(s *Store) {
		if key = strings.TrimSpace(key); key != "" {
			s.messagesKey = key
		}
	}
}

// WithLikedKey overrides the base key of the liked-set blob.
func WithLikedKey(key string) Option {
	return func(s *Store) {
		if key = strings.TrimSpace(key); key != "" {
			s.likedBase = key
		}
	}
}

// WithClock replaces time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces NewID.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets the logger used to report degraded reads.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a store on medium. A nil medium means no storage is available:
// reads come back empty and Create fails with ErrNoMedium.
func New(medium storage.Medium, opts ...Option) *Store {
	s := &Store{
		medium:      medium,
		messagesKey: DefaultMessagesKey,
		likedBase:   DefaultLikedKey,
		now:         time.Now,
		newID:       NewID,
		logger:      slog.Default(),
		mu:          &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.likedKey = s.likedBase
	return s
}

// ForBrowser returns a view of the store whose liked-set belongs to browserID.
// Views share the medium, the message collection and the lock.
func (s *Store) ForBrowser(browserID string) *Store {
	view := *s
	if id := strings.TrimSpace(browserID); id != "" {
		view.likedKey = s.likedBase + ":" + id
	} else {
		view.likedKey = s.likedBase
	}
	return &view
}

// LikedKey reports the liked-set key this view reads and writes.
func (s *Store) LikedKey() string {
	return s.likedKey
}

var _ Repository = (*Store)(nil)

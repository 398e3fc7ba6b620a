package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"forbias/internal/util"
	"forbias/pkg/catalog"
	"forbias/pkg/domain"
	"forbias/pkg/events"
	"forbias/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds runtime dependencies for the core application.
type Config struct {
	Store    *store.Store
	Catalog  catalog.Searcher
	Events   events.Publisher
	Registry *prometheus.Registry
	Now      func() time.Time
}

// App wires the record store, the catalog and event publishing together.
type App struct {
	store   *store.Store
	catalog catalog.Searcher
	events  events.Publisher
	metrics *metrics
	now     func() time.Time
}

// New constructs the application. Catalog and Events are optional.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("record store required")
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:   cfg.Store,
		catalog: cfg.Catalog,
		events:  publisher,
		metrics: newMetrics(reg),
		now:     now,
	}, nil
}

// CreateMessage stores a new record.
func (a *App) CreateMessage(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	msg, err := a.store.Create(ctx, draft)
	if err != nil {
		return domain.Message{}, err
	}
	a.metrics.created.Inc()
	a.publish(ctx, events.Event{
		Type:          events.TypeMessageCreated,
		MessageID:     msg.ID,
		RecipientName: msg.RecipientName,
		At:            a.now().UTC(),
	})
	return msg, nil
}

// ListMessages returns every record, or only those for recipient when it is
// not blank.
func (a *App) ListMessages(ctx context.Context, recipient string) []domain.Message {
	if strings.TrimSpace(recipient) == "" {
		return a.store.ListAll(ctx)
	}
	return a.store.ListByRecipient(ctx, recipient)
}

// GetMessage resolves a permalink id.
func (a *App) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	msg, ok := a.store.Get(ctx, id)
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

// LikeMessage records a like from browserID. The bool reports whether the
// browser has now liked the record; it is false only for unknown ids.
func (a *App) LikeMessage(ctx context.Context, browserID, id string) (domain.Message, bool, error) {
	msg, outcome, err := a.store.ForBrowser(browserID).Like(ctx, id)
	if err != nil {
		return domain.Message{}, false, err
	}
	a.metrics.likes.WithLabelValues(outcome.String()).Inc()
	switch outcome {
	case store.LikeUnknown:
		return domain.Message{}, false, nil
	case store.LikeCounted:
		a.publish(ctx, events.Event{
			Type:          events.TypeMessageLiked,
			MessageID:     msg.ID,
			RecipientName: msg.RecipientName,
			Likes:         msg.Likes,
			At:            a.now().UTC(),
		})
	}
	return msg, true, nil
}

// HasLiked reports whether browserID has liked id.
func (a *App) HasLiked(ctx context.Context, browserID, id string) bool {
	return a.store.ForBrowser(browserID).HasLiked(ctx, id)
}

// SearchTracks proxies a free-text query to the catalog.
func (a *App) SearchTracks(ctx context.Context, query string) ([]domain.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, catalog.ErrEmptyQuery
	}
	if a.catalog == nil {
		return nil, ErrSearchUnavailable
	}
	start := time.Now()
	tracks, err := a.catalog.Search(ctx, query)
	a.metrics.searchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.searches.WithLabelValues("error").Inc()
		return nil, err
	}
	a.metrics.searches.WithLabelValues("ok").Inc()
	if tracks == nil {
		tracks = []domain.Track{}
	}
	return tracks, nil
}

// MetricsHandler serves the app's prometheus registry.
func (a *App) MetricsHandler() http.Handler {
	return a.metrics.handler()
}

// Close releases the event publisher.
func (a *App) Close() error {
	return a.events.Close()
}

func (a *App) publish(ctx context.Context, ev events.Event) {
	if err := a.events.Publish(ctx, ev); err != nil {
		a.metrics.eventFailures.Inc()
		util.LoggerFromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "message_id", ev.MessageID, "err", err)
	}
}

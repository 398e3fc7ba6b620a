package app

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"forbias/pkg/catalog"
	"forbias/pkg/domain"
	"forbias/pkg/events"
	"forbias/pkg/storage"
	"forbias/pkg/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSearcher struct {
	tracks []domain.Track
	err    error
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]domain.Track, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestApp(t *testing.T, searcher catalog.Searcher, pub events.Publisher) *App {
	t.Helper()
	a, err := New(Config{
		Store:   store.New(storage.NewMemoryMedium()),
		Catalog: searcher,
		Events:  pub,
		Now:     func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestCreateAndListMessages(t *testing.T) {
	pub := &recordingPublisher{}
	a := newTestApp(t, nil, pub)
	ctx := context.Background()

	sam, err := a.CreateMessage(ctx, domain.Draft{RecipientName: "Sam", Message: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.CreateMessage(ctx, domain.Draft{RecipientName: "Jo", Message: "yo"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := a.ListMessages(ctx, ""); len(got) != 2 {
		t.Fatalf("list all = %d records, want 2", len(got))
	}
	got := a.ListMessages(ctx, "SAM")
	if len(got) != 1 || got[0].ID != sam.ID {
		t.Fatalf("list by recipient = %+v", got)
	}
	if c := testutil.ToFloat64(a.metrics.created); c != 2 {
		t.Fatalf("created counter = %v, want 2", c)
	}
	types := pub.types()
	if len(types) != 2 || types[0] != events.TypeMessageCreated {
		t.Fatalf("events = %v", types)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	a := newTestApp(t, nil, nil)
	if _, err := a.GetMessage(context.Background(), "nope"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestLikeMessage(t *testing.T) {
	pub := &recordingPublisher{}
	a := newTestApp(t, nil, pub)
	ctx := context.Background()
	msg, err := a.CreateMessage(ctx, domain.Draft{RecipientName: "Sam"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	liked, ok, err := a.LikeMessage(ctx, "browser-1", msg.ID)
	if err != nil || !ok || liked.Likes != 1 {
		t.Fatalf("first like: msg=%+v ok=%v err=%v", liked, ok, err)
	}
	liked, ok, err = a.LikeMessage(ctx, "browser-1", msg.ID)
	if err != nil || !ok || liked.Likes != 1 {
		t.Fatalf("repeat like: msg=%+v ok=%v err=%v", liked, ok, err)
	}
	if !a.HasLiked(ctx, "browser-1", msg.ID) {
		t.Fatalf("browser-1 should have liked")
	}
	if a.HasLiked(ctx, "browser-2", msg.ID) {
		t.Fatalf("browser-2 should not have liked")
	}
	liked, _, err = a.LikeMessage(ctx, "browser-2", msg.ID)
	if err != nil || liked.Likes != 2 {
		t.Fatalf("second browser like: msg=%+v err=%v", liked, err)
	}

	_, ok, err = a.LikeMessage(ctx, "browser-1", "missing")
	if err != nil || ok {
		t.Fatalf("unknown like: ok=%v err=%v", ok, err)
	}

	if c := testutil.ToFloat64(a.metrics.likes.WithLabelValues("counted")); c != 2 {
		t.Fatalf("counted likes = %v, want 2", c)
	}
	if c := testutil.ToFloat64(a.metrics.likes.WithLabelValues("duplicate")); c != 1 {
		t.Fatalf("duplicate likes = %v, want 1", c)
	}
	if c := testutil.ToFloat64(a.metrics.likes.WithLabelValues("unknown")); c != 1 {
		t.Fatalf("unknown likes = %v, want 1", c)
	}
	likedEvents := 0
	for _, typ := range pub.types() {
		if typ == events.TypeMessageLiked {
			likedEvents++
		}
	}
	if likedEvents != 2 {
		t.Fatalf("liked events = %d, want 2", likedEvents)
	}
}

func TestConcurrentLikesFromOneBrowserCountOnce(t *testing.T) {
	pub := &recordingPublisher{}
	a := newTestApp(t, nil, pub)
	ctx := context.Background()
	msg, err := a.CreateMessage(ctx, domain.Draft{RecipientName: "Sam"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := a.LikeMessage(ctx, "browser-1", msg.ID); err != nil {
				t.Errorf("like: %v", err)
			}
		}()
	}
	wg.Wait()

	if c := testutil.ToFloat64(a.metrics.likes.WithLabelValues("counted")); c != 1 {
		t.Fatalf("counted likes = %v, want 1", c)
	}
	if c := testutil.ToFloat64(a.metrics.likes.WithLabelValues("duplicate")); c != 15 {
		t.Fatalf("duplicate likes = %v, want 15", c)
	}
	likedEvents := 0
	for _, typ := range pub.types() {
		if typ == events.TypeMessageLiked {
			likedEvents++
		}
	}
	if likedEvents != 1 {
		t.Fatalf("liked events = %d, want 1", likedEvents)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	a := newTestApp(t, nil, pub)
	msg, err := a.CreateMessage(context.Background(), domain.Draft{RecipientName: "Sam"})
	if err != nil {
		t.Fatalf("create should succeed despite publish failure: %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected stored record")
	}
	if c := testutil.ToFloat64(a.metrics.eventFailures); c != 1 {
		t.Fatalf("event failures = %v, want 1", c)
	}
}

func TestSearchTracks(t *testing.T) {
	searcher := &fakeSearcher{tracks: []domain.Track{{ID: "t1", Name: "Song", Artist: "A"}}}
	a := newTestApp(t, searcher, nil)
	ctx := context.Background()

	if _, err := a.SearchTracks(ctx, " "); !errors.Is(err, catalog.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if searcher.calls != 0 {
		t.Fatalf("catalog called for empty query")
	}
	tracks, err := a.SearchTracks(ctx, "song")
	if err != nil || len(tracks) != 1 {
		t.Fatalf("search: tracks=%+v err=%v", tracks, err)
	}

	searcher.err = &catalog.APIError{Status: 502, Message: "bad gateway"}
	if _, err := a.SearchTracks(ctx, "song"); err == nil {
		t.Fatalf("expected upstream error")
	}
	if c := testutil.ToFloat64(a.metrics.searches.WithLabelValues("error")); c != 1 {
		t.Fatalf("search errors = %v, want 1", c)
	}

	searcher.err = nil
	searcher.tracks = nil
	tracks, err = a.SearchTracks(ctx, "nothing")
	if err != nil || tracks == nil || len(tracks) != 0 {
		t.Fatalf("empty result should be an empty slice, got %#v err=%v", tracks, err)
	}
}

func TestSearchWithoutCatalog(t *testing.T) {
	a := newTestApp(t, nil, nil)
	if _, err := a.SearchTracks(context.Background(), "song"); !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	a := newTestApp(t, nil, nil)
	if _, err := a.CreateMessage(context.Background(), domain.Draft{RecipientName: "Sam"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "forbias_messages_created_total 1") {
		t.Fatalf("metrics output missing created counter:\n%s", body)
	}
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// exerciseMedium checks the behaviour every medium shares.
func exerciseMedium(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()

	if _, err := m.Get(ctx, "messages"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing key: expected ErrNotFound, got %v", err)
	}
	if err := m.Set(ctx, "messages", []byte(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := m.Get(ctx, "messages")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `[{"id":"a"}]` {
		t.Fatalf("get = %q", got)
	}

	if err := m.Set(ctx, "messages", []byte(`[]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = m.Get(ctx, "messages")
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if string(got) != `[]` {
		t.Fatalf("get after overwrite = %q", got)
	}

	if err := m.Set(ctx, "likedMessages:browser/1", []byte(`["a"]`)); err != nil {
		t.Fatalf("set scoped key: %v", err)
	}
	got, err = m.Get(ctx, "likedMessages:browser/1")
	if err != nil {
		t.Fatalf("get scoped key: %v", err)
	}
	if string(got) != `["a"]` {
		t.Fatalf("get scoped key = %q", got)
	}
	if _, err := m.Get(ctx, "likedMessages"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("scoped keys must not alias the base key, got %v", err)
	}
}

func TestMemoryMedium(t *testing.T) {
	exerciseMedium(t, NewMemoryMedium())
}

func TestMemoryMediumReturnsCopies(t *testing.T) {
	m := NewMemoryMedium()
	value := []byte(`["a"]`)
	if err := m.Set(context.Background(), "k", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[2] = 'z'
	got, _ := m.Get(context.Background(), "k")
	got[2] = 'y'
	again, _ := m.Get(context.Background(), "k")
	if string(again) != `["a"]` {
		t.Fatalf("stored blob was mutated through caller slices: %q", again)
	}
}

func TestFileMedium(t *testing.T) {
	m, err := NewFileMedium(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("new file medium: %v", err)
	}
	exerciseMedium(t, m)
}

func TestFileMediumRequiresPath(t *testing.T) {
	if _, err := NewFileMedium("  "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

func TestRedisMedium(t *testing.T) {
	redis := miniredis.RunT(t)
	m, err := NewRedisMedium(redis.Addr(), "", "test:blob:")
	if err != nil {
		t.Fatalf("new redis medium: %v", err)
	}
	defer m.Close()
	exerciseMedium(t, m)

	raw, err := redis.Get("test:blob:messages")
	if err != nil {
		t.Fatalf("raw redis get: %v", err)
	}
	if raw != `[]` {
		t.Fatalf("raw redis value = %q", raw)
	}
}

func TestRedisMediumSurfacesConnectionErrors(t *testing.T) {
	redis := miniredis.RunT(t)
	m, err := NewRedisMedium(redis.Addr(), "", "")
	if err != nil {
		t.Fatalf("new redis medium: %v", err)
	}
	defer m.Close()
	redis.Close()
	if _, err := m.Get(context.Background(), "messages"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestPebbleMedium(t *testing.T) {
	m, err := NewPebbleMedium(filepath.Join(t.TempDir(), "pebble"))
	if err != nil {
		t.Fatalf("new pebble medium: %v", err)
	}
	defer m.Close()
	exerciseMedium(t, m)
}

func TestPebbleMediumPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	m, err := NewPebbleMedium(dir)
	if err != nil {
		t.Fatalf("new pebble medium: %v", err)
	}
	if err := m.Set(context.Background(), "messages", []byte(`[{"id":"x"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewPebbleMedium(dir)
	if err != nil {
		t.Fatalf("reopen pebble medium: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), "messages")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != `[{"id":"x"}]` {
		t.Fatalf("get after reopen = %q", got)
	}
}

func TestSetAllUsesBatcher(t *testing.T) {
	redis := miniredis.RunT(t)
	rm, err := NewRedisMedium(redis.Addr(), "", "")
	if err != nil {
		t.Fatalf("new redis medium: %v", err)
	}
	defer rm.Close()
	pm, err := NewPebbleMedium(filepath.Join(t.TempDir(), "pebble"))
	if err != nil {
		t.Fatalf("new pebble medium: %v", err)
	}
	defer pm.Close()
	fm, err := NewFileMedium(t.TempDir())
	if err != nil {
		t.Fatalf("new file medium: %v", err)
	}

	for name, m := range map[string]Medium{"memory": NewMemoryMedium(), "redis": rm, "pebble": pm, "file": fm} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			entries := []Entry{
				{Key: "likedMessages", Value: []byte(`["a"]`)},
				{Key: "messages", Value: []byte(`[{"id":"a","likes":1}]`)},
			}
			if err := SetAll(ctx, m, entries); err != nil {
				t.Fatalf("set all: %v", err)
			}
			for _, e := range entries {
				got, err := m.Get(ctx, e.Key)
				if err != nil {
					t.Fatalf("get %s: %v", e.Key, err)
				}
				if string(got) != string(e.Value) {
					t.Fatalf("%s = %q, want %q", e.Key, got, e.Value)
				}
			}
		})
	}
}

package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenSelectsDriver(t *testing.T) {
	redis := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "default is memory", opts: Options{}, want: "*storage.MemoryMedium"},
		{name: "driver is case-insensitive", opts: Options{Driver: "Memory"}, want: "*storage.MemoryMedium"},
		{name: "file", opts: Options{Driver: DriverFile, DataDir: filepath.Join(dir, "files")}, want: "*storage.FileMedium"},
		{name: "redis", opts: Options{Driver: DriverRedis, RedisAddr: redis.Addr()}, want: "*storage.RedisMedium"},
		{name: "pebble", opts: Options{Driver: DriverPebble, DataDir: filepath.Join(dir, "pebble")}, want: "*storage.PebbleMedium"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Open(tc.opts)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer m.Close()
			if got := fmt.Sprintf("%T", m); got != tc.want {
				t.Fatalf("medium type = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	if _, err := Open(Options{Driver: "sqlite"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	m, err := Open(Options{Driver: DriverFile})
	if err == nil {
		t.Fatalf("expected error for file driver without data dir")
	}
	if m != nil {
		t.Fatalf("failed open must return a nil medium, got %#v", m)
	}
}

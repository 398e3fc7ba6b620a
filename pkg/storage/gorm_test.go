package storage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlRecorder is a gorm logger that keeps every traced statement.
type sqlRecorder struct {
	mu   sync.Mutex
	stmt []string
}

func (r *sqlRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...any)           {}
func (r *sqlRecorder) Warn(context.Context, string, ...any)           {}
func (r *sqlRecorder) Error(context.Context, string, ...any)          {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmt = append(r.stmt, sql)
}

func (r *sqlRecorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmt...)
}

// dryRunMedium builds a GormMedium whose statements are rendered but never sent.
func dryRunMedium(t *testing.T) (*GormMedium, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 port=1 user=forbias dbname=forbias sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	if err != nil {
		t.Fatalf("open dry run db: %v", err)
	}
	return &GormMedium{db: db}, rec
}

func TestGormMediumRejectsInvalidJSON(t *testing.T) {
	g := &GormMedium{}
	err := g.Set(context.Background(), "messages", []byte("not json"))
	if err == nil || !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("expected JSON validation error, got %v", err)
	}
}

func TestGormMediumSetUpserts(t *testing.T) {
	g, rec := dryRunMedium(t)
	if err := g.Set(context.Background(), "messages", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	stmts := rec.statements()
	if len(stmts) != 1 {
		t.Fatalf("expected one statement, got %q", stmts)
	}
	sql := stmts[0]
	for _, want := range []string{`INSERT INTO "blob_models"`, `ON CONFLICT ("key") DO UPDATE SET`, `"value"="excluded"."value"`} {
		if !strings.Contains(sql, want) {
			t.Fatalf("statement %q missing %q", sql, want)
		}
	}
}

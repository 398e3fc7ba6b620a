package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// BlobModel is the GORM row holding one blob.
type BlobModel struct {
	Key       string         `gorm:"primaryKey"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

// GormMedium implements Medium on top of a Postgres table.
type GormMedium struct {
	db *gorm.DB
}

// NewGormMedium opens the DB and runs auto-migrations.
func NewGormMedium(dsn string) (*GormMedium, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormMediumFromDB(db)
}

// NewGormMediumFromDB wraps an already opened connection.
func NewGormMediumFromDB(db *gorm.DB) (*GormMedium, error) {
	if err := db.AutoMigrate(&BlobModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormMedium{db: db}, nil
}

// Get loads the blob row for key.
func (g *GormMedium) Get(ctx context.Context, key string) ([]byte, error) {
	var model BlobModel
	if err := g.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(model.Value), nil
}

// Set upserts the blob row for key. Values must be JSON since the column is jsonb.
func (g *GormMedium) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("blob %q is not valid JSON", key)
	}
	model := BlobModel{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}

// Close closes the underlying sql.DB.
func (g *GormMedium) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetBatch upserts all entries in one transaction.
func (g *GormMedium) SetBatch(ctx context.Context, entries []Entry) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &GormMedium{db: tx}
		for _, e := range entries {
			if err := scoped.Set(ctx, e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

package storage

import (
	"fmt"
	"strings"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverPebble   = "pebble"
	DriverS3       = "s3"
)

// Options selects and configures a medium.
type Options struct {
	Driver        string
	KeyPrefix     string
	DataDir       string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	S3            S3Options
}

// Open builds the medium named by opts.Driver.
func Open(opts Options) (ClosableMedium, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverMemory, "":
		return NewMemoryMedium(), nil
	case DriverFile:
		return opened(NewFileMedium(opts.DataDir))
	case DriverRedis:
		return opened(NewRedisMedium(opts.RedisAddr, opts.RedisPassword, opts.KeyPrefix))
	case DriverPostgres:
		return opened(NewGormMedium(opts.DatabaseURL))
	case DriverPebble:
		return opened(NewPebbleMedium(opts.DataDir))
	case DriverS3:
		return opened(NewMinioMedium(opts.S3, opts.KeyPrefix))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// opened keeps a failed constructor from leaking a typed nil into the interface.
func opened[M ClosableMedium](m M, err error) (ClosableMedium, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}

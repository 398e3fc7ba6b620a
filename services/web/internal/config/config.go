package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"forbias/pkg/storage"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, overridable with FORBIAS_CONFIG.
var ConfigPath = envOr("FORBIAS_CONFIG", "config.yaml")

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                     string        `yaml:"port"`
	LogLevel                 string        `yaml:"logLevel"`
	PublicBaseURL            string        `yaml:"publicBaseURL"`
	Storage                  StorageConfig `yaml:"storage"`
	DataDir                  string        `yaml:"dataDir"`
	DatabaseURL              string        `yaml:"databaseURL"`
	RedisAddr                string        `yaml:"redisAddr"`
	RedisPassword            string        `yaml:"redisPassword"`
	S3                       S3Config      `yaml:"s3"`
	Spotify                  SpotifyConfig `yaml:"spotify"`
	TrustedProxyCIDRs        []string      `yaml:"trustedProxyCidrs"`
	SearchRateLimitPerMinute int           `yaml:"searchRateLimitPerMinute"`
	LikeRateLimitPerMinute   int           `yaml:"likeRateLimitPerMinute"`
	BrowserCookieName        string        `yaml:"browserCookieName"`
	BrowserCookieSecret      string        `yaml:"browserCookieSecret"`
	BrowserCookieMaxAgeDays  int           `yaml:"browserCookieMaxAgeDays"`
	BrowserCookieSecure      bool          `yaml:"browserCookieSecure"`
	Events                   EventsConfig  `yaml:"events"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

type SpotifyConfig struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	TokenURL     string `yaml:"tokenURL"`
	APIBaseURL   string `yaml:"apiBaseURL"`
	Market       string `yaml:"market"`
	Limit        int    `yaml:"limit"`
}

type EventsConfig struct {
	Driver   string `yaml:"driver"`
	AMQPURL  string `yaml:"amqpURL"`
	Exchange string `yaml:"exchange"`
	Stream   string `yaml:"stream"`
}

// Load reads config from path (defaults to ConfigPath). A .env file in the
// working directory is loaded first so overrides can live there.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load(".env")

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("FORBIAS_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_PUBLIC_BASE_URL"); v != "" {
		cfg.PublicBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("FORBIAS_S3_ACCESS_KEY"); v != "" {
		cfg.S3.AccessKey = v
	}
	if v := os.Getenv("FORBIAS_S3_SECRET_KEY"); v != "" {
		cfg.S3.SecretKey = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.Spotify.ClientID = strings.TrimSpace(v)
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.Spotify.ClientSecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("FORBIAS_SEARCH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SearchRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("FORBIAS_LIKE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LikeRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("FORBIAS_BROWSER_COOKIE_SECRET"); v != "" {
		cfg.BrowserCookieSecret = v
	}
	if v := os.Getenv("FORBIAS_BROWSER_COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.BrowserCookieSecure = b
		}
	}
	if v := os.Getenv("FORBIAS_EVENTS_DRIVER"); v != "" {
		cfg.Events.Driver = strings.TrimSpace(v)
	}
	if v := os.Getenv("FORBIAS_AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = storage.DriverMemory
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.BrowserCookieName == "" {
		cfg.BrowserCookieName = "forbias_browser"
	}
	if cfg.BrowserCookieMaxAgeDays == 0 {
		cfg.BrowserCookieMaxAgeDays = 365
	}
	if cfg.Events.Driver == "" {
		cfg.Events.Driver = "none"
	}
	cfg.Events.Driver = strings.ToLower(cfg.Events.Driver)
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "forbias.events"
	}
	if cfg.Events.Stream == "" {
		cfg.Events.Stream = "forbias:events"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or FORBIAS_PORT)")
	}
	switch cfg.Storage.Driver {
	case storage.DriverMemory:
	case storage.DriverFile, storage.DriverPebble:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return fmt.Errorf("config: dataDir is required for the %s storage driver", cfg.Storage.Driver)
		}
	case storage.DriverRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis storage driver")
		}
	case storage.DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return errors.New("config: databaseURL is required for the postgres storage driver (or DATABASE_URL)")
		}
	case storage.DriverS3:
		if strings.TrimSpace(cfg.S3.Endpoint) == "" || strings.TrimSpace(cfg.S3.Bucket) == "" {
			return errors.New("config: s3.endpoint and s3.bucket are required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.SearchRateLimitPerMinute < 0 || cfg.LikeRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if len(strings.TrimSpace(cfg.BrowserCookieSecret)) < 16 {
		return errors.New("config: browserCookieSecret must be at least 16 characters (or FORBIAS_BROWSER_COOKIE_SECRET)")
	}
	if cfg.BrowserCookieMaxAgeDays < 0 {
		return errors.New("config: browserCookieMaxAgeDays must be >= 0")
	}
	switch cfg.Events.Driver {
	case "none":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis events driver")
		}
	case "amqp":
		if strings.TrimSpace(cfg.Events.AMQPURL) == "" {
			return errors.New("config: events.amqpURL is required for the amqp events driver (or FORBIAS_AMQP_URL)")
		}
	default:
		return fmt.Errorf("config: unknown events driver %q", cfg.Events.Driver)
	}
	return nil
}

// StorageOptions maps the config onto storage.Open options.
func (cfg FileConfig) StorageOptions() storage.Options {
	return storage.Options{
		Driver:        cfg.Storage.Driver,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		DataDir:       cfg.DataDir,
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		S3: storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		},
	}
}

// SpotifyEnabled reports whether catalog credentials are configured.
func (cfg FileConfig) SpotifyEnabled() bool {
	return cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != ""
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

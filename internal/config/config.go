package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendValkey = "valkey"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// Feed endpoints.
	StationsURL   string        `validate:"required,url"`
	UserPointsURL string        `validate:"required,url"`
	HTTPTimeout   time.Duration `validate:"gt=0"`

	// Engine tuning.
	ClusterRadiusKm float64       `validate:"gt=0"`
	CacheTTL        time.Duration `validate:"gt=0"`
	RefreshInterval time.Duration `validate:"gt=0"`

	// Snapshot cache.
	CacheBackend   string `validate:"oneof=memory badger valkey"`
	BadgerDir      string `validate:"required_if=CacheBackend badger"`
	ValkeyAddr     string `validate:"required_if=CacheBackend valkey"`
	CacheKeyPrefix string `validate:"required"`

	// Optional integrations; empty disables them.
	NATSURL        string
	GeocoderAPIKey string

	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

// Load reads configuration from environment (and an optional .env file)
// with sensible defaults, then validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Err(err).Msg("no .env file loaded")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "8080"),
		StationsURL:    os.Getenv("STATIONS_URL"),
		UserPointsURL:  os.Getenv("USER_POINTS_URL"),
		CacheBackend:   strings.ToLower(getenvDefault("CACHE_BACKEND", BackendMemory)),
		BadgerDir:      os.Getenv("BADGER_DIR"),
		ValkeyAddr:     os.Getenv("VALKEY_ADDR"),
		CacheKeyPrefix: getenvDefault("CACHE_KEY_PREFIX", "glow"),
		NATSURL:        os.Getenv("NATS_URL"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
		LogLevel:       strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.ClusterRadiusKm, err = getenvFloat("CLUSTER_RADIUS_KM", 1.0); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

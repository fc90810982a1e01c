package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/rai1001/CulinaryOs/internal/log"
	"github.com/rai1001/CulinaryOs/pkg/models"
	"github.com/rai1001/CulinaryOs/pkg/service"
)

const (
	DefaultHTTPPort      = "8080"
	DefaultBoardCacheTTL = 30 * time.Second
)

// Config holds the process settings read from the environment.
type Config struct {
	DatabaseURL   string // Empty selects the in-memory store
	RedisURL      string // Empty disables the board cache
	BoardCacheTTL time.Duration
	HTTPPort      string
	Rounding      service.RoundingPolicy
	RemovedLines  service.RemovedLinePolicy
	ExtraStations []models.Station
	LogLevel      string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.GetLogger().Debugf("No .env loaded: %v", err)
	}
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		DatabaseURL: getenv("DATABASE_URL"),
		RedisURL:    getenv("REDIS_URL"),
		HTTPPort:    getenv("HTTP_PORT"),
		LogLevel:    getenv("LOG_LEVEL"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromParts(getenv)
	}
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = DefaultHTTPPort
	}

	cfg.BoardCacheTTL = DefaultBoardCacheTTL
	if raw := getenv("BOARD_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse BOARD_CACHE_TTL %q", raw)
		}
		cfg.BoardCacheTTL = ttl
	}

	var err error
	if cfg.Rounding, err = service.ParseRoundingPolicy(getenv("BATCH_ROUNDING")); err != nil {
		return Config{}, errors.WithMessage(err, "BATCH_ROUNDING")
	}
	if cfg.RemovedLines, err = service.ParseRemovedLinePolicy(getenv("REMOVED_LINE_POLICY")); err != nil {
		return Config{}, errors.WithMessage(err, "REMOVED_LINE_POLICY")
	}
	for _, s := range strings.Split(getenv("EXTRA_STATIONS"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.ExtraStations = append(cfg.ExtraStations, models.Station(s))
		}
	}
	return cfg, nil
}

// dsnFromParts assembles a Postgres URL from DB_* variables; all five must be set.
func dsnFromParts(getenv func(string) string) string {
	user, password := getenv("DB_USERNAME"), getenv("DB_PASSWORD")
	host, port, name := getenv("DB_HOST"), getenv("DB_PORT"), getenv("DB_NAME")
	if user == "" || password == "" || host == "" || port == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
}

// Options converts the config into engine options. The cache is wired by the caller.
func (c Config) Options() service.Options {
	return service.Options{
		Rounding:      c.Rounding,
		RemovedLines:  c.RemovedLines,
		ExtraStations: c.ExtraStations,
	}
}

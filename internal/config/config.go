package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported comment store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the resolved runtime configuration.
type Config struct {
	HTTPPort int
	GinMode  string
	Verbose  bool

	// MaxWinners bounds the requested count of a draw.
	MaxWinners int
	// MaxDepth is the last selectable attempt, zero-based.
	MaxDepth int
	// Seed fixes the random source when non-zero.
	Seed uint64

	SessionTTL      time.Duration
	JanitorInterval time.Duration

	CommentDriver string
	CommentDSN    string
}

type configFile struct {
	Service struct {
		HTTPPort int    `yaml:"http_port"`
		GinMode  string `yaml:"gin_mode"`
		Verbose  *bool  `yaml:"verbose"`
	} `yaml:"service"`
	Draw struct {
		MaxWinners int    `yaml:"max_winners"`
		MaxDepth   *int   `yaml:"max_depth"`
		Seed       uint64 `yaml:"seed"`
	} `yaml:"draw"`
	Sessions struct {
		TTLMinutes             int `yaml:"ttl_minutes"`
		JanitorIntervalMinutes int `yaml:"janitor_interval_minutes"`
	} `yaml:"sessions"`
	Comments struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"comments"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:        8080,
		GinMode:         "release",
		MaxWinners:      3,
		MaxDepth:        2,
		SessionTTL:      time.Hour,
		JanitorInterval: 10 * time.Minute,
	}
}

// Load resolves configuration as defaults -> file -> env. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.HTTPPort = envInt("PORT", cfg.HTTPPort)
	cfg.GinMode = envOrDefault("GIN_MODE", cfg.GinMode)
	cfg.Verbose = envBool("VERBOSE", cfg.Verbose)
	cfg.MaxWinners = envInt("DRAW_MAX_WINNERS", cfg.MaxWinners)
	cfg.MaxDepth = envInt("DRAW_MAX_DEPTH", cfg.MaxDepth)
	cfg.Seed = uint64(envInt("DRAW_SEED", int(cfg.Seed)))
	cfg.SessionTTL = time.Duration(envInt("SESSION_TTL_MINUTES", int(cfg.SessionTTL.Minutes()))) * time.Minute
	cfg.JanitorInterval = time.Duration(envInt("JANITOR_INTERVAL_MINUTES", int(cfg.JanitorInterval.Minutes()))) * time.Minute
	cfg.CommentDriver = strings.ToLower(strings.TrimSpace(envOrDefault("COMMENTS_DRIVER", cfg.CommentDriver)))
	cfg.CommentDSN = envOrDefault("COMMENTS_DSN", cfg.CommentDSN)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GinMode != "" {
		cfg.GinMode = f.Service.GinMode
	}
	if f.Service.Verbose != nil {
		cfg.Verbose = *f.Service.Verbose
	}
	if f.Draw.MaxWinners > 0 {
		cfg.MaxWinners = f.Draw.MaxWinners
	}
	if f.Draw.MaxDepth != nil {
		cfg.MaxDepth = *f.Draw.MaxDepth
	}
	if f.Draw.Seed != 0 {
		cfg.Seed = f.Draw.Seed
	}
	if f.Sessions.TTLMinutes > 0 {
		cfg.SessionTTL = time.Duration(f.Sessions.TTLMinutes) * time.Minute
	}
	if f.Sessions.JanitorIntervalMinutes > 0 {
		cfg.JanitorInterval = time.Duration(f.Sessions.JanitorIntervalMinutes) * time.Minute
	}
	if f.Comments.Driver != "" {
		cfg.CommentDriver = f.Comments.Driver
	}
	if f.Comments.DSN != "" {
		cfg.CommentDSN = f.Comments.DSN
	}
	return nil
}

// Validate checks the bounds the draw engine relies on.
func (c Config) Validate() error {
	if c.MaxWinners < 1 {
		return fmt.Errorf("%w: max winners must be at least 1", ErrInvalidConfig)
	}
	if c.MaxDepth < 0 || c.MaxDepth >= c.MaxWinners {
		return fmt.Errorf("%w: max depth %d outside [0, %d)", ErrInvalidConfig, c.MaxDepth, c.MaxWinners)
	}
	if c.SessionTTL <= 0 || c.JanitorInterval <= 0 {
		return fmt.Errorf("%w: session ttl and janitor interval must be positive", ErrInvalidConfig)
	}
	switch c.CommentDriver {
	case "":
	case DriverPostgres, DriverSQLite:
		if c.CommentDSN == "" {
			return fmt.Errorf("%w: comments driver %s needs a dsn", ErrInvalidConfig, c.CommentDriver)
		}
	default:
		return fmt.Errorf("%w: unknown comments driver %q", ErrInvalidConfig, c.CommentDriver)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"vrptw/internal/solver"
)

// Config is the complete service configuration.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	SQLitePath  string `yaml:"sqlitePath"`
	RedisURL    string `yaml:"redisUrl"`

	Solver   SolverConfig  `yaml:"solver"`
	Auth     AuthConfig    `yaml:"auth"`
	Rate     RateConfig    `yaml:"rate"`
	Webhooks WebhookConfig `yaml:"webhooks"`
	Workers  WorkerConfig  `yaml:"workers"`
}

// SolverConfig selects the default solver and its options.
type SolverConfig struct {
	Default string         `yaml:"default"`
	Options solver.Options `yaml:"options"`
	// TightBigM selects the tightened time propagation constraints.
	TightBigM bool `yaml:"tightBigM"`
	// MaxCustomers rejects larger instances at the API; 0 disables the check.
	MaxCustomers int `yaml:"maxCustomers"`
}

// AuthConfig controls how bearer tokens are verified.
type AuthConfig struct {
	Mode       string `yaml:"mode"` // dev, hmac or off
	HMACSecret string `yaml:"hmacSecret"`
}

// RateConfig sets the per-tenant token bucket.
type RateConfig struct {
	RPS   float64 `yaml:"rps"` // 0 disables limiting
	Burst int     `yaml:"burst"`
}

// WebhookConfig controls callback delivery.
type WebhookConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
	// Secret signs callback payloads (X-Signature); empty sends them unsigned.
	Secret string `yaml:"secret"`
}

// WorkerConfig sizes the async solve pool and its queue.
type WorkerConfig struct {
	Count int `yaml:"count"`
	Queue int `yaml:"queue"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Port:     "8080",
		Solver:   SolverConfig{Default: "cbc"},
		Auth:     AuthConfig{Mode: "dev"},
		Rate:     RateConfig{RPS: 0, Burst: 10},
		Webhooks: WebhookConfig{MaxAttempts: 5, Timeout: 10 * time.Second},
		Workers:  WorkerConfig{Count: 2, Queue: 64},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is not empty), then .env in the working directory, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("SQLITE_PATH", &c.SQLitePath)
	str("REDIS_URL", &c.RedisURL)
	str("VRPTW_SOLVER", &c.Solver.Default)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("WEBHOOK_SECRET", &c.Webhooks.Secret)

	if v, ok := lookup("VRPTW_TIME_LIMIT"); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("config: VRPTW_TIME_LIMIT: %w", err)
		}
		c.Solver.Options.TimeLimit = d
	}
	if v, ok := lookup("VRPTW_TIGHT_BIG_M"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: VRPTW_TIGHT_BIG_M: %w", err)
		}
		c.Solver.TightBigM = b
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		c.Rate.RPS = f
	}
	ints := map[string]*int{
		"RATE_BURST":           &c.Rate.Burst,
		"WEBHOOK_MAX_ATTEMPTS": &c.Webhooks.MaxAttempts,
		"VRPTW_WORKERS":        &c.Workers.Count,
		"VRPTW_MAX_CUSTOMERS":  &c.Solver.MaxCustomers,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// parseSeconds accepts a Go duration ("90s", "2m") or a plain number of seconds.
func parseSeconds(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate reports the first setting that cannot work, naming its key.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: PORT must not be empty")
	case c.Solver.Default == "":
		return errors.New("config: VRPTW_SOLVER must not be empty")
	case c.Solver.Options.TimeLimit < 0:
		return errors.New("config: VRPTW_TIME_LIMIT must not be negative")
	case c.Solver.Options.Gap < 0:
		return errors.New("config: solver.options.gap must not be negative")
	case c.Solver.MaxCustomers < 0:
		return errors.New("config: VRPTW_MAX_CUSTOMERS must not be negative")
	case c.Rate.RPS < 0:
		return errors.New("config: RATE_RPS must not be negative")
	case c.Rate.RPS > 0 && c.Rate.Burst < 1:
		return errors.New("config: RATE_BURST must be >= 1 when RATE_RPS is set")
	case c.Webhooks.MaxAttempts < 1:
		return errors.New("config: WEBHOOK_MAX_ATTEMPTS must be >= 1")
	case c.Workers.Count < 1:
		return errors.New("config: VRPTW_WORKERS must be >= 1")
	case c.Workers.Queue < 1:
		return errors.New("config: workers.queue must be >= 1")
	}
	switch c.Auth.Mode {
	case "dev", "off":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return errors.New("config: AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
		}
	default:
		return fmt.Errorf("config: AUTH_MODE %q is not one of dev, hmac, off", c.Auth.Mode)
	}
	return nil
}

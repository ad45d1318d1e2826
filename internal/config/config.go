// Package config loads the server settings from the environment and,
// optionally, from a YAML file.
//
// Precedence, highest first: environment variables, the YAML file named by
// CONFIG_PATH, the env-default tags below.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the full server configuration.
type Config struct {
	HTTP    HTTP    `yaml:"http"`
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
	Session Session `yaml:"session"`
	Credits Credits `yaml:"credits"`
	Fal     Fal     `yaml:"fal"`
	Seed    Seed    `yaml:"seed"`
}

// HTTP holds the listener settings and the directory static content is served from.
type HTTP struct {
	Port         int           `yaml:"port" env:"PORT" env-default:"3000"`
	ContentDir   string        `yaml:"content_dir" env:"CONTENT_DIR" env-default:"web"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"150s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Storage locates the SQLite database file.
type Storage struct {
	DBPath string `yaml:"db_path" env:"DB_PATH" env-default:"data/fluxgate.db"`
}

// Log sets the minimum slog level.
type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Session controls token lifetime, the expired-session sweep and the cookie Secure flag.
type Session struct {
	TTL          time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"24h"`
	SweepEvery   time.Duration `yaml:"sweep_every" env:"SESSION_SWEEP_INTERVAL" env-default:"1h"`
	CookieSecure bool          `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`
}

// Credits sets the signup balance, the top-up grant and the price of one image.
type Credits struct {
	Starting  int64 `yaml:"starting" env:"STARTING_CREDITS" env-default:"20"`
	Grant     int64 `yaml:"grant" env:"GRANT_CREDITS" env-default:"20"`
	ImageCost int64 `yaml:"image_cost" env:"IMAGE_COST" env-default:"1"`
}

// Fal configures the fal.ai image provider.
type Fal struct {
	APIKey          string        `yaml:"api_key" env:"FAL_KEY"`
	BaseURL         string        `yaml:"base_url" env:"FAL_BASE_URL" env-default:"https://fal.run"`
	Model           string        `yaml:"model" env:"FAL_MODEL" env-default:"fal-ai/flux-pro"`
	Timeout         time.Duration `yaml:"timeout" env:"FAL_TIMEOUT" env-default:"120s"`
	SafetyTolerance string        `yaml:"safety_tolerance" env:"FAL_SAFETY_TOLERANCE" env-default:"5"`
}

// Seed describes an optional bootstrap account created at startup.
type Seed struct {
	Email    string `yaml:"email" env:"SEED_EMAIL"`
	Password string `yaml:"password" env:"SEED_PASSWORD"`
	Credits  int64  `yaml:"credits" env:"SEED_CREDITS" env-default:"100"`
}

// Enabled reports whether a seed account is configured.
func (s Seed) Enabled() bool { return s.Email != "" }

// Load reads the configuration. An empty path skips the file and reads the
// environment only. The result is validated.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: reading environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1..65535, got %d", c.HTTP.Port))
	}
	if c.HTTP.ContentDir == "" {
		errs = append(errs, errors.New("CONTENT_DIR is required"))
	}
	if c.Storage.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL))
	}
	if c.Session.SweepEvery <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive, got %s", c.Session.SweepEvery))
	}
	if c.Credits.Starting < 0 {
		errs = append(errs, fmt.Errorf("STARTING_CREDITS cannot be negative, got %d", c.Credits.Starting))
	}
	if c.Credits.Grant <= 0 {
		errs = append(errs, fmt.Errorf("GRANT_CREDITS must be positive, got %d", c.Credits.Grant))
	}
	if c.Credits.ImageCost <= 0 {
		errs = append(errs, fmt.Errorf("IMAGE_COST must be positive, got %d", c.Credits.ImageCost))
	}
	if c.Fal.APIKey == "" {
		errs = append(errs, errors.New("FAL_KEY is required"))
	}
	if c.Fal.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("FAL_TIMEOUT must be positive, got %s", c.Fal.Timeout))
	}
	// A generation request is held open for the whole provider call.
	if c.HTTP.WriteTimeout <= c.Fal.Timeout {
		errs = append(errs, fmt.Errorf("HTTP_WRITE_TIMEOUT (%s) must exceed FAL_TIMEOUT (%s)",
			c.HTTP.WriteTimeout, c.Fal.Timeout))
	}
	if c.Seed.Enabled() && c.Seed.Password == "" {
		errs = append(errs, errors.New("SEED_PASSWORD is required when SEED_EMAIL is set"))
	}
	if c.Seed.Credits < 0 {
		errs = append(errs, fmt.Errorf("SEED_CREDITS cannot be negative, got %d", c.Seed.Credits))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps debug, info, warn and error (any case) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn or error", s)
	}
	return level, nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url" env:"COURIER_API_BASE_URL"`
		Timeout time.Duration `yaml:"timeout"  env:"COURIER_API_TIMEOUT"`
	} `yaml:"api"`
	Realtime struct {
		URL          string        `yaml:"url"           env:"COURIER_REALTIME_URL"`
		DialTimeout  time.Duration `yaml:"dial_timeout"  env:"COURIER_REALTIME_DIAL_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"COURIER_REALTIME_WRITE_TIMEOUT"`
	} `yaml:"realtime"`
	Storage struct {
		Driver string `yaml:"driver" env:"COURIER_STORAGE_DRIVER"` // memory | file | postgres
		Path   string `yaml:"path"   env:"COURIER_STORAGE_PATH"`
	} `yaml:"storage"`
	Database struct {
		Host     string `yaml:"host"     env:"COURIER_DB_HOST"`
		Port     int    `yaml:"port"     env:"COURIER_DB_PORT"`
		User     string `yaml:"user"     env:"COURIER_DB_USER"`
		Password string `yaml:"password" env:"COURIER_DB_PASSWORD"`
		Name     string `yaml:"database" env:"COURIER_DB_NAME"`
	} `yaml:"database"`
	RabbitMQ struct {
		Enabled  bool   `yaml:"enabled"  env:"COURIER_RABBITMQ_ENABLED"`
		Host     string `yaml:"host"     env:"COURIER_RABBITMQ_HOST"`
		Port     int    `yaml:"port"     env:"COURIER_RABBITMQ_PORT"`
		User     string `yaml:"user"     env:"COURIER_RABBITMQ_USER"`
		Password string `yaml:"password" env:"COURIER_RABBITMQ_PASSWORD"`
	} `yaml:"rabbitmq"`
	Location struct {
		HighAccuracy bool          `yaml:"high_accuracy" env:"COURIER_LOCATION_HIGH_ACCURACY"`
		MaximumAge   time.Duration `yaml:"maximum_age"   env:"COURIER_LOCATION_MAXIMUM_AGE"`
		Timeout      time.Duration `yaml:"timeout"       env:"COURIER_LOCATION_TIMEOUT"`
	} `yaml:"location"`
	Lifecycle struct {
		CloseDelay time.Duration `yaml:"close_delay" env:"COURIER_LIFECYCLE_CLOSE_DELAY"`
	} `yaml:"lifecycle"`
	Dashboard struct {
		StatsInterval time.Duration `yaml:"stats_interval" env:"COURIER_DASHBOARD_STATS_INTERVAL"`
	} `yaml:"dashboard"`
	JWT struct {
		SecretKey string `yaml:"secret_key" env:"COURIER_JWT_SECRET_KEY"`
	} `yaml:"jwt"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.Location.HighAccuracy = true
	applyDefaults(&cfg)
	return &cfg
}

// LoadFromFile loads config from a YAML file, applies environment overrides and defaults,
// and validates required fields. A missing file yields the defaults (plus env overrides).
func LoadFromFile(path string) (*Config, error) {
	cfg := Config{}
	cfg.Location.HighAccuracy = true

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// API
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:5000/api"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}

	// Realtime; the socket lives at the API host without the /api suffix
	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = deriveRealtimeURL(cfg.API.BaseURL)
	}
	if cfg.Realtime.DialTimeout == 0 {
		cfg.Realtime.DialTimeout = 10 * time.Second
	}
	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = 5 * time.Second
	}

	// Storage
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "file"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./courier-state.json"
	}

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Location
	if cfg.Location.MaximumAge == 0 {
		cfg.Location.MaximumAge = 10 * time.Second
	}
	if cfg.Location.Timeout == 0 {
		cfg.Location.Timeout = 30 * time.Second
	}

	// Lifecycle
	if cfg.Lifecycle.CloseDelay == 0 {
		cfg.Lifecycle.CloseDelay = 1500 * time.Millisecond
	}

	// Dashboard
	if cfg.Dashboard.StatsInterval == 0 {
		cfg.Dashboard.StatsInterval = 30 * time.Second
	}
}

// deriveRealtimeURL turns http(s)://host/api into ws(s)://host/ws.
func deriveRealtimeURL(apiBase string) string {
	u, err := url.Parse(apiBase)
	if err != nil || u.Host == "" {
		return "ws://localhost:5000/ws"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api") + "/ws"
	return u.String()
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "api.base_url must be an absolute URL")
	}
	if c.API.Timeout < 0 {
		problems = append(problems, "api.timeout must be positive")
	}

	// Realtime
	if u, err := url.Parse(c.Realtime.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		problems = append(problems, "realtime.url must use ws:// or wss://")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory", "file":
	case "postgres":
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "database.port must be in 1..65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "database.user is required")
		}
		if c.Database.Name == "" {
			problems = append(problems, "database.database is required")
		}
	default:
		problems = append(problems, "storage.driver must be one of memory|file|postgres")
	}

	// RabbitMQ
	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required")
		}
	}

	// Location
	if c.Location.Timeout < time.Second {
		problems = append(problems, "location.timeout must be at least 1s")
	}
	if c.Location.MaximumAge < 0 {
		problems = append(problems, "location.maximum_age cannot be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

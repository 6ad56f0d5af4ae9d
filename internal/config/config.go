package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Features  FeaturesConfig  `yaml:"features"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	CORS      CORSConfig      `yaml:"cors"`
	Profiles  []string        `yaml:"profiles"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Path names an optional log file, capped in size.
	Path string `yaml:"path"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// DefaultExtensionID is the caller's extension when auth is disabled.
	DefaultExtensionID string `yaml:"default_extension_id"`
}

type FeaturesConfig struct {
	// Path names the feature whitelist YAML file. Empty means no extension
	// is whitelisted.
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type StoreConfig struct {
	MaxResults int `yaml:"max_results"`
	Workers    int `yaml:"workers"`
}

type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`
	// Log writes every broadcast activity event to the server log.
	Log bool `yaml:"log"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "activitylog.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: TransportHTTP,
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Features: FeaturesConfig{
			Watch: true,
		},
		Store: StoreConfig{
			MaxResults: 300,
			Workers:    4,
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
		Profiles: []string{"default"},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("ACTIVITYLOG_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("ACTIVITYLOG_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("ACTIVITYLOG_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIVITYLOG_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("ACTIVITYLOG_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("ACTIVITYLOG_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("ACTIVITYLOG_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("ACTIVITYLOG_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if features := os.Getenv("ACTIVITYLOG_FEATURES_PATH"); features != "" {
		cfg.Features.Path = features
	}
	if enabled := os.Getenv("ACTIVITYLOG_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIVITYLOG_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if eventLog := os.Getenv("ACTIVITYLOG_EVENTS_LOG"); eventLog != "" {
		v, err := strconv.ParseBool(eventLog)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIVITYLOG_EVENTS_LOG: %w", err)
		}
		cfg.Events.Log = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case TransportHTTP, TransportStdio:
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Store.MaxResults <= 0 {
		return fmt.Errorf("store.max_results must be positive")
	}
	if c.Store.Workers <= 0 {
		return fmt.Errorf("store.workers must be positive")
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

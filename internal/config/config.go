package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server  Server  `mapstructure:"server"`
	Service Service `mapstructure:"service"`
	Poll    Poll    `mapstructure:"poll"`
	Storage Storage `mapstructure:"storage"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Retry   Retry   `mapstructure:"retry"`
	Gallery Gallery `mapstructure:"gallery"`
}

// Server holds the local control API configuration.
type Server struct {
	HTTPPort  string `mapstructure:"http_port"`  // address to listen on, e.g. ":8081"
	PublicURL string `mapstructure:"public_url"` // base of in-memory handle URLs
}

// Service describes the remote image processing service.
type Service struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // per request
}

// Poll holds status polling settings.
type Poll struct {
	Interval time.Duration `mapstructure:"interval"` // fixed delay between status queries
}

// Storage selects where display handles live.
type Storage struct {
	Kind       string        `mapstructure:"kind"` // "memory" or "minio"
	Endpoint   string        `mapstructure:"endpoint"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	BucketName string        `mapstructure:"bucket_name"`
	UseSSL     bool          `mapstructure:"use_ssl"`
	URLExpiry  time.Duration `mapstructure:"url_expiry"` // presigned URL lifetime
}

// Kafka holds configuration for session event publishing.
// Publishing is disabled when no brokers are set.
type Kafka struct {
	Topic   string   `mapstructure:"topic"`   // Kafka topic name
	Brokers []string `mapstructure:"brokers"` // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Gallery configures the contact sheet written for finished jobs.
type Gallery struct {
	Output   string `mapstructure:"output"`    // empty disables the sheet
	FontPath string `mapstructure:"font_path"` // empty uses the built-in face
}

const (
	StorageMemory = "memory"
	StorageMinio  = "minio"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8081")
	v.SetDefault("server.public_url", "http://localhost:8081")
	v.SetDefault("service.base_url", "http://localhost:8080")
	v.SetDefault("service.timeout", 10*time.Second)
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("storage.kind", StorageMemory)
	v.SetDefault("storage.bucket_name", "image-tracker")
	v.SetDefault("storage.url_expiry", 15*time.Minute)
	v.SetDefault("kafka.topic", "image-tracker-events")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds the environment variables that commonly differ per deployment.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"service.base_url":   "SERVICE_BASE_URL",
		"storage.endpoint":   "STORAGE_ENDPOINT",
		"storage.access_key": "STORAGE_ACCESS_KEY",
		"storage.secret_key": "STORAGE_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the YAML configuration at path. A missing file is not an
// error: defaults and environment variables still apply. Variables from a
// .env file next to the working directory are loaded first, if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		zlog.Logger.Warn().Str("path", path).Msg("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return errors.New("service.base_url is required")
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}

	switch c.Storage.Kind {
	case StorageMemory:
	case StorageMinio:
		if c.Storage.Endpoint == "" || c.Storage.BucketName == "" {
			return errors.New("storage.endpoint and storage.bucket_name are required for minio")
		}
	default:
		return fmt.Errorf("unknown storage.kind %q", c.Storage.Kind)
	}

	return nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration cannot be loaded or is invalid.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

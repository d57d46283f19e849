package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: ":9000"
service:
  base_url: "http://images.local"
  timeout: 3s
poll:
  interval: 500ms
storage:
  kind: minio
  endpoint: "minio:9000"
  bucket_name: "handles"
kafka:
  brokers: ["kafka:9092"]
gallery:
  output: "sheet.png"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPPort)
	assert.Equal(t, "http://images.local", cfg.Service.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Service.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, StorageMinio, cfg.Storage.Kind)
	assert.Equal(t, "handles", cfg.Storage.BucketName)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "image-tracker-events", cfg.Kafka.Topic)
	assert.Equal(t, "sheet.png", cfg.Gallery.Output)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, StorageMemory, cfg.Storage.Kind)
	assert.Equal(t, "http://localhost:8080", cfg.Service.BaseURL)
	assert.Equal(t, "http://localhost:8081", cfg.Server.PublicURL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_BASE_URL", "http://from-env:8080")
	t.Setenv("POLL_INTERVAL", "1s")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8080", cfg.Service.BaseURL)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Service: Service{BaseURL: "http://localhost:8080"},
			Poll:    Poll{Interval: time.Second},
			Storage: Storage{Kind: StorageMemory},
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no base url", mutate: func(c *Config) { c.Service.BaseURL = "" }, errString: "service.base_url"},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.Interval = 0 }, errString: "poll.interval"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Kind = "s3" }, errString: "unknown storage.kind"},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Storage.Kind = StorageMinio }, errString: "storage.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := c.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dealscout/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dealscout", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.Protocol)
	require.NoError(t, cfg.Validate())

	cfg.Enabled = true
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"service name", func(c *Config) { c.ServiceName = "" }, "service_name"},
		{"version", func(c *Config) { c.ServiceVersion = "" }, "service_version"},
		{"protocol", func(c *Config) { c.Protocol = "thrift" }, "protocol"},
		{"insecure remote", func(c *Config) { c.Endpoint = "otel.example.com:4317" }, "insecure"},
		{"rate high", func(c *Config) { c.Sampling.Rate = 1.1 }, "sampling.rate"},
		{"rate low", func(c *Config) { c.Sampling.Rate = -0.1 }, "sampling.rate"},
		{"export interval", func(c *Config) { c.Metrics.ExportInterval = 0 }, "export_interval"},
		{"shutdown", func(c *Config) { c.Shutdown.Timeout = 0 }, "shutdown.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"[::1]:4317":            true,
		"http://localhost:4318": true,
		"otel.example.com:4317": false,
		"10.0.0.5:4317":         false,
	}
	for endpoint, want := range tests {
		cfg := &Config{Endpoint: endpoint}
		assert.Equal(t, want, cfg.isLocalEndpoint(), endpoint)
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Default()
	app.Telemetry.Enabled = true
	app.Telemetry.Endpoint = "localhost:4318"
	app.Telemetry.Protocol = "http/protobuf"
	app.Telemetry.Insecure = true
	app.Telemetry.SamplingRate = 0.5

	cfg := FromAppConfig(app, "v0.3.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "v0.3.0", cfg.ServiceVersion)
	assert.Equal(t, 0.5, cfg.Sampling.Rate)
	require.NoError(t, cfg.Validate())
}

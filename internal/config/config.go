// Package config provides configuration loading for dealscout.
//
// Values come from built-in defaults, then an optional YAML file, then
// DEALSCOUT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete dealscout configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
	Memory        MemoryConfig        `koanf:"memory"`
	Dispatch      DispatchConfig      `koanf:"dispatch"`
	Recipes       RecipesConfig       `koanf:"recipes"`
	Enrichment    EnrichmentConfig    `koanf:"enrichment"`
	Feedback      FeedbackConfig      `koanf:"feedback"`
	AutoProcess   AutoProcessConfig   `koanf:"autoprocess"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	Host            string   `koanf:"host"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig names the service in logs and traces.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// LoggingConfig selects level and encoder for the binaries.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Memory backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// MemoryConfig controls persona memory persistence.
type MemoryConfig struct {
	Backend          string   `koanf:"backend"`
	Path             string   `koanf:"path"`
	Debounce         Duration `koanf:"debounce"`
	RewardHistoryCap int      `koanf:"reward_history_cap"`
	MaxExamples      int      `koanf:"max_examples"`
}

// DispatchConfig controls the request queue.
type DispatchConfig struct {
	QueueMode       string `koanf:"queue_mode"`
	MaxQueue        int    `koanf:"max_queue"`
	ResultRetention int    `koanf:"result_retention"`
}

// RecipesConfig points at an optional TOML recipe pack.
type RecipesConfig struct {
	File string `koanf:"file"`
}

// EnrichmentConfig configures the upstream profile API.
type EnrichmentConfig struct {
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	RateLimit float64  `koanf:"rate_limit"`
	Burst     int      `koanf:"burst"`
	Timeout   Duration `koanf:"timeout"`
}

// FeedbackConfig configures where feedback records are published.
// An empty NATSURL logs feedback instead.
type FeedbackConfig struct {
	NATSURL string `koanf:"nats_url"`
	Subject string `koanf:"subject"`
}

// AutoProcessConfig holds the default auto-process thresholds.
type AutoProcessConfig struct {
	LikeThreshold    int `koanf:"like_threshold"`
	DislikeThreshold int `koanf:"dislike_threshold"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "dealscout"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = BackendFile
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = "~/.config/dealscout/memory.json"
	}
	if cfg.Memory.Debounce == 0 {
		cfg.Memory.Debounce = Duration(time.Second)
	}
	if cfg.Memory.RewardHistoryCap == 0 {
		cfg.Memory.RewardHistoryCap = 100
	}
	if cfg.Memory.MaxExamples == 0 {
		cfg.Memory.MaxExamples = 5
	}

	if cfg.Dispatch.QueueMode == "" {
		cfg.Dispatch.QueueMode = "fifo"
	}
	if cfg.Dispatch.ResultRetention == 0 {
		cfg.Dispatch.ResultRetention = 256
	}

	if cfg.Enrichment.RateLimit == 0 {
		cfg.Enrichment.RateLimit = 5
	}
	if cfg.Enrichment.Burst == 0 {
		cfg.Enrichment.Burst = 1
	}
	if cfg.Enrichment.Timeout == 0 {
		cfg.Enrichment.Timeout = Duration(10 * time.Second)
	}

	if cfg.Feedback.Subject == "" {
		cfg.Feedback.Subject = "dealscout.feedback"
	}

	if cfg.AutoProcess.LikeThreshold == 0 {
		cfg.AutoProcess.LikeThreshold = 75
	}
	if cfg.AutoProcess.DislikeThreshold == 0 {
		cfg.AutoProcess.DislikeThreshold = 35
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	switch c.Memory.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("memory.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Memory.Backend)
	}
	if c.Memory.Path == "" {
		return errors.New("memory.path is required")
	}
	if c.Memory.RewardHistoryCap < 0 || c.Memory.MaxExamples < 0 {
		return errors.New("memory caps cannot be negative")
	}

	switch c.Dispatch.QueueMode {
	case "fifo", "priority":
	default:
		return fmt.Errorf("dispatch.queue_mode must be fifo or priority, got %q", c.Dispatch.QueueMode)
	}
	if c.Dispatch.MaxQueue < 0 {
		return errors.New("dispatch.max_queue cannot be negative")
	}

	if c.Enrichment.RateLimit < 0 || c.Enrichment.Burst < 0 {
		return errors.New("enrichment rate limit cannot be negative")
	}

	if c.AutoProcess.LikeThreshold <= c.AutoProcess.DislikeThreshold {
		return fmt.Errorf("autoprocess.like_threshold (%d) must exceed dislike_threshold (%d)",
			c.AutoProcess.LikeThreshold, c.AutoProcess.DislikeThreshold)
	}

	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
	}
	return nil
}

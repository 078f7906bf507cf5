// Package config loads the service configuration from YAML, JSON5 or TOML
// files.
package config

import (
	"time"

	"github.com/smarter-sh/smarter-sub001/plugin"
)

// Config is the complete service configuration.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider"`
	Defaults      DefaultsConfig      `yaml:"defaults"`
	AllowedModels []string            `yaml:"allowed_models"`
	SystemPrompt  string              `yaml:"system_prompt"`
	Logging       LoggingConfig       `yaml:"logging"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Storage       StorageConfig       `yaml:"storage"`
	Functions     FunctionsConfig     `yaml:"functions"`
	Plugins       []plugin.Definition `yaml:"plugins"`
}

// ProviderConfig selects the chat-completion endpoint.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultsConfig fills session model settings left unset.
type DefaultsConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int64   `yaml:"max_tokens"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures the async sinks, metrics and tracing.
type TelemetryConfig struct {
	BufferSize   int     `yaml:"buffer_size"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// StorageConfig selects the chat history database. An empty driver keeps
// history in memory.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

// FunctionsConfig configures the built-in functions.
type FunctionsConfig struct {
	Weather WeatherConfig `yaml:"weather"`
}

// WeatherConfig points the weather built-in at an Open-Meteo compatible API.
type WeatherConfig struct {
	GeocodeURL  string `yaml:"geocode_url"`
	ForecastURL string `yaml:"forecast_url"`
}

// Default values.
const (
	DefaultProvider     = "openai"
	DefaultTimeout      = 60 * time.Second
	DefaultModel        = "gpt-4o-mini"
	DefaultTemperature  = 0.5
	DefaultMaxTokens    = int64(2048)
	DefaultBufferSize   = 256
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultSamplingRate = 1.0
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = DefaultProvider
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = DefaultTimeout
	}
	if cfg.Defaults.Model == "" {
		cfg.Defaults.Model = DefaultModel
	}
	if cfg.Defaults.Temperature == nil {
		t := DefaultTemperature
		cfg.Defaults.Temperature = &t
	}
	if cfg.Defaults.MaxTokens == nil {
		n := DefaultMaxTokens
		cfg.Defaults.MaxTokens = &n
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.BufferSize == 0 {
		cfg.Telemetry.BufferSize = DefaultBufferSize
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = DefaultSamplingRate
	}
}

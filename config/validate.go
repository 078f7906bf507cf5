package config

import (
	"slices"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/logging"
)

// Validate reports the first invalid setting as a configuration error.
func (c *Config) Validate() error {
	switch {
	case c.Provider.Timeout <= 0:
		return core.Errorf(core.ErrConfiguration, "config.validate", "provider.timeout must be positive")
	case c.Defaults.Model == "":
		return core.Errorf(core.ErrConfiguration, "config.validate", "defaults.model is required")
	case c.Defaults.MaxTokens != nil && *c.Defaults.MaxTokens <= 0:
		return core.Errorf(core.ErrConfiguration, "config.validate", "defaults.max_tokens must be positive")
	case c.Defaults.Temperature != nil && (*c.Defaults.Temperature < 0 || *c.Defaults.Temperature > 2):
		return core.Errorf(core.ErrConfiguration, "config.validate", "defaults.temperature must be within [0, 2]")
	case c.Telemetry.BufferSize < 0:
		return core.Errorf(core.ErrConfiguration, "config.validate", "telemetry.buffer_size must not be negative")
	case c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1:
		return core.Errorf(core.ErrConfiguration, "config.validate", "telemetry.sampling_rate must be within [0, 1]")
	case c.Storage.Driver != "" && c.Storage.DSN == "":
		return core.Errorf(core.ErrConfiguration, "config.validate", "storage.dsn is required for driver %q", c.Storage.Driver)
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return core.Errorf(core.ErrConfiguration, "config.validate", "unknown logging.level %q", c.Logging.Level)
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		return core.Errorf(core.ErrConfiguration, "config.validate", "logging.format must be json or text, got %q", f)
	}
	if len(c.AllowedModels) > 0 && !slices.Contains(c.AllowedModels, c.Defaults.Model) {
		return core.Errorf(core.ErrConfiguration, "config.validate", "defaults.model %q is not in allowed_models", c.Defaults.Model)
	}

	seen := make(map[int64]bool, len(c.Plugins))
	for _, def := range c.Plugins {
		if err := def.Validate(); err != nil {
			return err
		}
		if seen[def.ID] {
			return core.Errorf(core.ErrConfiguration, "config.validate", "duplicate plugin id %d", def.ID)
		}
		seen[def.ID] = true
	}
	return nil
}

// LoggerConfig translates the logging section.
func (c *Config) LoggerConfig() *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level, _ = logging.ParseLevel(c.Logging.Level)
	lc.Format = c.Logging.Format
	return lc
}

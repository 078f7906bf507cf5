package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter-sub001/core"
)

// Environment variables that fill an empty provider api key.
const (
	APIKeyEnv          = "OPENAI_API_KEY"
	AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
)

// ProviderAnthropic selects the Anthropic Messages API.
const ProviderAnthropic = "anthropic"

func apiKeyEnv(provider string) string {
	if provider == ProviderAnthropic {
		return AnthropicAPIKeyEnv
	}
	return APIKeyEnv
}

// Load reads the configuration at path. The format follows the extension:
// .json and .json5 are JSON5, .toml is TOML, anything else is YAML.
// ${VAR} references are expanded before parsing.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, core.Errorf(core.ErrConfiguration, "config.load", "config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.WrapError(core.ErrConfiguration, "config.load", fmt.Errorf("failed to read config file: %w", err))
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes data in the format named by ext, then applies defaults and
// validates the result.
func Parse(data []byte, ext string) (*Config, error) {
	raw, err := parseRaw([]byte(os.ExpandEnv(string(data))), strings.ToLower(ext))
	if err != nil {
		return nil, core.WrapError(core.ErrConfiguration, "config.parse", fmt.Errorf("failed to parse config: %w", err))
	}

	// every format is normalized through YAML so one set of struct tags applies
	normalized, err := yaml.Marshal(raw)
	if err != nil {
		return nil, core.WrapError(core.ErrConfiguration, "config.parse", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(normalized, &cfg); err != nil {
		return nil, core.WrapError(core.ErrConfiguration, "config.parse", fmt.Errorf("failed to decode config: %w", err))
	}

	applyDefaults(&cfg)
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv(apiKeyEnv(cfg.Provider.Name))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseRaw(data []byte, ext string) (map[string]any, error) {
	var raw map[string]any
	switch ext {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(&raw); err != nil && err != io.EOF {
			return nil, err
		}
		if err := decoder.Decode(&struct{}{}); err != io.EOF {
			return nil, fmt.Errorf("expected a single document")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

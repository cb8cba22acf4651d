package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are filled from the environment and
// Defaults (see Resolve).
type Config struct {
	Addr          string  `json:"addr" yaml:"addr" toml:"addr"`
	OllamaBaseURL string  `json:"ollama_base_url" yaml:"ollama_base_url" toml:"ollama_base_url"`
	OllamaModel   string  `json:"ollama_model" yaml:"ollama_model" toml:"ollama_model"`
	Temperature   float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	// RequestLog is where one NDJSON line per generation is appended.
	RequestLog string `json:"request_log" yaml:"request_log" toml:"request_log"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// LogFile, when set, receives a rotated copy of the diagnostic log.
	LogFile string `json:"log_file" yaml:"log_file" toml:"log_file"`

	MaxBodyBytes           int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	GenerateTimeoutSeconds int64 `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

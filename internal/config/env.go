package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"minivault/internal/common/fsutil"
	"minivault/internal/llm"
	"minivault/internal/reqlog"
)

// Environment variable names.
const (
	EnvOllamaBaseURL = "OLLAMA_BASE_URL"
	EnvOllamaModel   = "OLLAMA_MODEL"
	EnvAddr          = "MINIVAULT_ADDR"
	EnvTemperature   = "MINIVAULT_TEMPERATURE"
	EnvRequestLog    = "MINIVAULT_LOG_PATH"
	EnvLogLevel      = "MINIVAULT_LOG_LEVEL"
	EnvLogFormat     = "MINIVAULT_LOG_FORMAT"
	EnvLogFile       = "MINIVAULT_LOG_FILE"
	EnvCORSOrigins   = "MINIVAULT_CORS_ORIGINS"
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Addr:          ":8000",
		OllamaBaseURL: llm.DefaultBaseURL,
		OllamaModel:   llm.DefaultModel,
		Temperature:   llm.DefaultTemperature,
		RequestLog:    reqlog.DefaultPath,
		LogLevel:      "info",
		LogFormat:     "json",
		MaxBodyBytes:  1 << 20,
		CORSMethods:   []string{"GET", "POST", "OPTIONS"},
		CORSHeaders:   []string{"Content-Type", "X-Log-Level"},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// when the file exists. Variables already set are left alone.
func LoadDotEnv(path string) error {
	if path == "" || !fsutil.PathExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv reads the recognised variables through getenv (os.Getenv in main).
// Unset variables leave the corresponding fields zero.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:          strings.TrimSpace(getenv(EnvAddr)),
		OllamaBaseURL: strings.TrimSpace(getenv(EnvOllamaBaseURL)),
		OllamaModel:   strings.TrimSpace(getenv(EnvOllamaModel)),
		RequestLog:    strings.TrimSpace(getenv(EnvRequestLog)),
		LogLevel:      strings.TrimSpace(getenv(EnvLogLevel)),
		LogFormat:     strings.TrimSpace(getenv(EnvLogFormat)),
		LogFile:       strings.TrimSpace(getenv(EnvLogFile)),
	}
	if origins := splitCSV(getenv(EnvCORSOrigins)); len(origins) > 0 {
		cfg.CORSEnabled = true
		cfg.CORSOrigins = origins
	}
	if v := strings.TrimSpace(getenv(EnvTemperature)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvTemperature, err)
		}
		cfg.Temperature = f
	}
	return cfg, nil
}

// Merge returns base with every non-zero field of over applied on top.
func Merge(base, over Config) Config {
	if over.Addr != "" {
		base.Addr = over.Addr
	}
	if over.OllamaBaseURL != "" {
		base.OllamaBaseURL = over.OllamaBaseURL
	}
	if over.OllamaModel != "" {
		base.OllamaModel = over.OllamaModel
	}
	if over.Temperature != 0 {
		base.Temperature = over.Temperature
	}
	if over.RequestLog != "" {
		base.RequestLog = over.RequestLog
	}
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	if over.LogFormat != "" {
		base.LogFormat = over.LogFormat
	}
	if over.LogFile != "" {
		base.LogFile = over.LogFile
	}
	if over.MaxBodyBytes != 0 {
		base.MaxBodyBytes = over.MaxBodyBytes
	}
	if over.GenerateTimeoutSeconds != 0 {
		base.GenerateTimeoutSeconds = over.GenerateTimeoutSeconds
	}
	if over.CORSEnabled {
		base.CORSEnabled = true
	}
	if len(over.CORSOrigins) > 0 {
		base.CORSOrigins = over.CORSOrigins
	}
	if len(over.CORSMethods) > 0 {
		base.CORSMethods = over.CORSMethods
	}
	if len(over.CORSHeaders) > 0 {
		base.CORSHeaders = over.CORSHeaders
	}
	return base
}

// Resolve layers defaults < file (when path is set) < environment.
// Command-line flags are applied by the caller on top of the result.
func Resolve(path string, getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = Merge(cfg, fileCfg)
	}
	envCfg, err := FromEnv(getenv)
	if err != nil {
		return cfg, err
	}
	cfg = Merge(cfg, envCfg)
	if cfg.RequestLog, err = fsutil.ExpandHome(cfg.RequestLog); err != nil {
		return cfg, err
	}
	if cfg.LogFile, err = fsutil.ExpandHome(cfg.LogFile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// splitCSV splits a comma-separated list, trimming blanks and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolve_DefaultsWhenUnset(t *testing.T) {
	cfg, err := Resolve("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaBaseURL)
	assert.Equal(t, "tinyllama:1.1b-chat", cfg.OllamaModel)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, "logs/log.jsonl", cfg.RequestLog)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml", "ollama_model: from-file\naddr: :9000\n")
	cfg, err := Resolve(p, envMap(map[string]string{
		EnvOllamaModel:   "from-env",
		EnvOllamaBaseURL: "http://ollama:11434",
		EnvTemperature:   "0.1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OllamaModel)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaBaseURL)
	assert.Equal(t, 0.1, cfg.Temperature)
}

func TestResolve_BadTemperature(t *testing.T) {
	_, err := Resolve("", envMap(map[string]string{EnvTemperature: "warm"}))
	require.Error(t, err)
}

func TestResolve_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg, err := Resolve("", envMap(map[string]string{EnvRequestLog: "~/mv/log.jsonl"}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mv", "log.jsonl"), cfg.RequestLog)
}

func TestLoadDotEnv_DoesNotOverrideSetVars(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), ".env", "OLLAMA_MODEL=dotenv-model\nMINIVAULT_TEST_ONLY=yes\n")
	t.Setenv(EnvOllamaModel, "already-set")
	t.Setenv("MINIVAULT_TEST_ONLY", "")
	require.NoError(t, os.Unsetenv("MINIVAULT_TEST_ONLY"))

	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "already-set", os.Getenv(EnvOllamaModel))
	assert.Equal(t, "yes", os.Getenv("MINIVAULT_TEST_ONLY"))
	require.NoError(t, os.Unsetenv("MINIVAULT_TEST_ONLY"))
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	require.NoError(t, LoadDotEnv(""))
}

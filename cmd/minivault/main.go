package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"minivault/internal/common/fsutil"
	"minivault/internal/config"
	"minivault/internal/httpapi"
	"minivault/internal/llm"
	"minivault/internal/reqlog"
	"minivault/internal/stream"
)

func main() {
	if err := newRootCmd(os.Getenv, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "minivault:", err)
		os.Exit(1)
	}
}

// flagValues mirrors the command-line flags; only flags the user set are
// applied on top of file and environment configuration.
type flagValues struct {
	configPath      string
	envFile         string
	addr            string
	ollamaURL       string
	model           string
	temperature     float64
	requestLog      string
	logLevel        string
	logFormat       string
	logFile         string
	maxBodyBytes    int64
	generateTimeout time.Duration
	corsEnabled     bool
	corsOrigins     []string
}

func newRootCmd(getenv func(string) string, stderr io.Writer) *cobra.Command {
	fv := &flagValues{}
	cmd := &cobra.Command{
		Use:           "minivault",
		Short:         "Serve a local Ollama model over REST and WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv, getenv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stderr, nil)
		},
	}
	bindFlags(cmd, fv)
	return cmd
}

func bindFlags(cmd *cobra.Command, fv *flagValues) {
	f := cmd.Flags()
	f.StringVar(&fv.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	f.StringVar(&fv.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment (skipped if absent)")
	f.StringVar(&fv.addr, "addr", "", "HTTP listen address (default :8000, env MINIVAULT_ADDR)")
	f.StringVar(&fv.ollamaURL, "ollama-url", "", "Ollama base URL (default http://localhost:11434, env OLLAMA_BASE_URL)")
	f.StringVar(&fv.model, "model", "", "Ollama model (default tinyllama:1.1b-chat, env OLLAMA_MODEL)")
	f.Float64Var(&fv.temperature, "temperature", 0, "Sampling temperature (default 0.7)")
	f.StringVar(&fv.requestLog, "request-log", "", "Request log path (default logs/log.jsonl, env MINIVAULT_LOG_PATH)")
	f.StringVar(&fv.logLevel, "log-level", "", "Log level: debug|info|warn|error|off (default info)")
	f.StringVar(&fv.logFormat, "log-format", "", "Log format: json|console (default json)")
	f.StringVar(&fv.logFile, "log-file", "", "Also write the diagnostic log to this rotated file")
	f.Int64Var(&fv.maxBodyBytes, "max-body-bytes", 0, "Maximum request body size (default 1MiB)")
	f.DurationVar(&fv.generateTimeout, "generate-timeout", 0, "Per-request generation timeout (0 disables)")
	f.BoolVar(&fv.corsEnabled, "cors-enabled", false, "Enable CORS")
	f.StringSliceVar(&fv.corsOrigins, "cors-origins", nil, "Allowed CORS origins (comma separated)")
}

// resolveConfig layers defaults < config file < environment < flags.
func resolveConfig(cmd *cobra.Command, fv *flagValues, getenv func(string) string) (config.Config, error) {
	if err := config.LoadDotEnv(fv.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Resolve(fv.configPath, getenv)
	if err != nil {
		return cfg, err
	}
	// Flags are applied field by field so explicit zero values still win.
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = fv.addr
	}
	if changed("ollama-url") {
		cfg.OllamaBaseURL = fv.ollamaURL
	}
	if changed("model") {
		cfg.OllamaModel = fv.model
	}
	if changed("temperature") {
		cfg.Temperature = fv.temperature
	}
	if changed("request-log") {
		cfg.RequestLog = fv.requestLog
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = fv.logFormat
	}
	if changed("log-file") {
		cfg.LogFile = fv.logFile
	}
	if changed("max-body-bytes") {
		cfg.MaxBodyBytes = fv.maxBodyBytes
	}
	if changed("generate-timeout") {
		cfg.GenerateTimeoutSeconds = int64(fv.generateTimeout / time.Second)
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = fv.corsOrigins
		cfg.CORSEnabled = true
	}
	if changed("cors-enabled") {
		cfg.CORSEnabled = fv.corsEnabled
	}
	if cfg.RequestLog, err = fsutil.ExpandHome(cfg.RequestLog); err != nil {
		return cfg, err
	}
	if cfg.LogFile, err = fsutil.ExpandHome(cfg.LogFile); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// run serves until ctx is canceled or a SIGINT/SIGTERM arrives. When ready is
// non-nil it receives the bound listen address.
func run(ctx context.Context, cfg config.Config, stderr io.Writer, ready chan<- string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, closer := newLogger(cfg, stderr)
	defer closer.Close()

	backend, err := llm.NewOllama(llm.Options{
		BaseURL:     cfg.OllamaBaseURL,
		Model:       cfg.OllamaModel,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return err
	}
	requests := reqlog.NewFileSink(cfg.RequestLog)
	acc := stream.New(backend, requests)

	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetGenerateTimeoutSeconds(cfg.GenerateTimeoutSeconds)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)
	defer httpapi.SetBaseContext(nil)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(httpapi.NewService(acc, backend)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("ollama", cfg.OllamaBaseURL).
		Str("model", backend.Model()).
		Str("request_log", requests.Path()).
		Msg("minivault listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	// Socket sessions are hijacked and outlive Shutdown; let them log and close.
	if err := httpapi.WaitSessions(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("socket sessions still open at shutdown")
		return err
	}
	logger.Info().Msg("minivault stopped")
	return nil
}

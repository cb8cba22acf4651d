package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Defaults used when the corresponding Options fields are unset.
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "tinyllama:1.1b-chat"
	DefaultTemperature = 0.7

	defaultConnectTimeout = 5 * time.Second
)

// Options configures the Ollama-backed client.
type Options struct {
	BaseURL        string
	Model          string
	Temperature    float64
	ConnectTimeout time.Duration
}

// Ollama streams chat completions from a local Ollama server.
type Ollama struct {
	api         *api.Client
	model       string
	temperature float64
}

// NewOllama constructs a client for the Ollama server at opts.BaseURL.
func NewOllama(opts Options) (*Ollama, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse model endpoint %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("model endpoint %q must be an absolute URL", base)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	temp := opts.Temperature
	if temp <= 0 {
		temp = DefaultTemperature
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// No client-wide Timeout: generation may legitimately run for a long time,
	// deadlines come from the request context.
	cli := &http.Client{Transport: tr}
	return &Ollama{
		api:         api.NewClient(u, cli),
		model:       model,
		temperature: temp,
	}, nil
}

// Model returns the model identifier sent with every request.
func (o *Ollama) Model() string { return o.model }

func (o *Ollama) Stream(ctx context.Context, prompt string, onToken func(string) error) error {
	stream := true
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  map[string]any{"temperature": o.temperature},
	}
	var (
		cbErr error
		done  bool
	)
	err := o.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Done {
			done = true
		}
		frag := resp.Message.Content
		if frag == "" {
			return nil
		}
		if e := onToken(frag); e != nil {
			cbErr = e
			return e
		}
		return nil
	})
	if err == nil {
		if done {
			return nil
		}
		// The api client ignores read errors on the body, so a stream that
		// ends without its done line was cut short.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return generationFailed(io.ErrUnexpectedEOF)
	}
	if cbErr != nil && errors.Is(err, cbErr) {
		return cbErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return generationFailed(err)
}

// Ready reports whether the Ollama server answers its heartbeat.
func (o *Ollama) Ready(ctx context.Context) bool {
	return o.api.Heartbeat(ctx) == nil
}

// Models lists the model names installed on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	resp, err := o.api.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, generationFailed(err)
	}
	out := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, m.Name)
	}
	return out, nil
}

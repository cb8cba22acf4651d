// Package llmtest provides fake model backends for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Script is a canned client emitting Fragments in order.
// If Err is set it is returned after FailAfter fragments have been emitted.
// OnEmit, when set, runs after each fragment was handed to the callback.
type Script struct {
	Fragments []string
	Err       error
	FailAfter int
	OnEmit    func(i int)
	NotReady  bool
	ModelList []string

	mu      sync.Mutex
	prompts []string
	pulled  int
}

// Fragments returns a Script that emits frags and completes.
func Fragments(frags ...string) *Script { return &Script{Fragments: frags} }

func (s *Script) Stream(ctx context.Context, prompt string, onToken func(string) error) error {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	for i, f := range s.Fragments {
		if s.Err != nil && i >= s.FailAfter {
			return s.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		s.pulled++
		s.mu.Unlock()
		if err := onToken(f); err != nil {
			return err
		}
		if s.OnEmit != nil {
			s.OnEmit(i)
		}
	}
	if s.Err != nil {
		return s.Err
	}
	return nil
}

func (s *Script) Ready(ctx context.Context) bool { return !s.NotReady }

func (s *Script) Models(ctx context.Context) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.ModelList...), nil
}

// Prompts returns the prompts Stream has been called with.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Pulled returns how many fragments were handed out across all calls.
func (s *Script) Pulled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulled
}

// ErrScripted is a convenience failure for scripts.
var ErrScripted = errors.New("scripted failure")

// ChatRequest is the subset of an Ollama /api/chat body the fake server records.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Stream  *bool          `json:"stream"`
	Options map[string]any `json:"options"`
}

// OllamaServer is an httptest server speaking enough of the Ollama API
// for the chat, tags and heartbeat endpoints.
type OllamaServer struct {
	*httptest.Server

	// Fragments streamed for every /api/chat call.
	Fragments []string
	// StreamError, when set, is sent as an error line after the fragments.
	StreamError string
	// Status, when non-zero, is returned instead of streaming.
	Status int
	// Drop closes the connection after the fragments, without a done line.
	Drop bool
	// Stall keeps the response open after the fragments until the client
	// goes away or the server is closed.
	Stall  bool
	Models []string

	stop chan struct{}

	mu       sync.Mutex
	requests []ChatRequest
}

// NewOllamaServer starts a fake Ollama server closed at test cleanup.
func NewOllamaServer(t testing.TB, frags ...string) *OllamaServer {
	t.Helper()
	s := &OllamaServer{Fragments: frags, Models: []string{"tinyllama:1.1b-chat"}, stop: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.chat)
	mux.HandleFunc("/api/tags", s.tags)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ollama is running"))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	// Runs before Close so stalled handlers return.
	t.Cleanup(func() { close(s.stop) })
	return s
}

// Requests returns the decoded chat requests received so far.
func (s *OllamaServer) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.requests...)
}

func (s *OllamaServer) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if s.Status != 0 {
		w.WriteHeader(s.Status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(s.Status)})
		return
	}
	enc := json.NewEncoder(w)
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	for _, frag := range s.Fragments {
		_ = enc.Encode(chatLine(req.Model, frag, false))
		flush()
		if r.Context().Err() != nil {
			return
		}
	}
	switch {
	case s.Drop:
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
			}
		}
		return
	case s.Stall:
		select {
		case <-r.Context().Done():
		case <-s.stop:
		}
		return
	}
	if s.StreamError != "" {
		_ = enc.Encode(map[string]string{"error": s.StreamError})
		flush()
		return
	}
	_ = enc.Encode(chatLine(req.Model, "", true))
	flush()
}

func (s *OllamaServer) tags(w http.ResponseWriter, r *http.Request) {
	type model struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	}
	out := struct {
		Models []model `json:"models"`
	}{Models: []model{}}
	for _, m := range s.Models {
		out.Models = append(out.Models, model{Name: m, Model: m})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func chatLine(model, content string, done bool) map[string]any {
	line := map[string]any{
		"model":      model,
		"created_at": "2024-01-01T00:00:00Z",
		"message":    map[string]string{"role": "assistant", "content": content},
		"done":       done,
	}
	if done {
		line["done_reason"] = "stop"
	}
	return line
}

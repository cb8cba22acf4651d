package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"minivault/internal/httpapi"
	"minivault/internal/llm"
	"minivault/internal/llm/llmtest"
	"minivault/internal/reqlog"
	"minivault/internal/stream"
	"minivault/pkg/types"
)

type stack struct {
	ollama  *llmtest.OllamaServer
	srv     *httptest.Server
	logPath string
}

// newStack wires the real Ollama client, file request log and HTTP mux
// against a fake Ollama endpoint streaming frags.
func newStack(t *testing.T, frags ...string) *stack {
	t.Helper()
	ollama := llmtest.NewOllamaServer(t, frags...)
	backend, err := llm.NewOllama(llm.Options{BaseURL: ollama.URL})
	if err != nil {
		t.Fatalf("new ollama client: %v", err)
	}
	logPath := filepath.Join(t.TempDir(), "logs", "log.jsonl")
	acc := stream.New(backend, reqlog.NewFileSink(logPath))
	srv := httptest.NewServer(httpapi.NewMux(httpapi.NewService(acc, backend)))
	t.Cleanup(srv.Close)
	return &stack{ollama: ollama, srv: srv, logPath: logPath}
}

func (s *stack) post(t *testing.T, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(s.srv.URL+"/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (s *stack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/generate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// entries reads the request log; a missing file means no entries.
func (s *stack) entries(t *testing.T) []types.LogEntry {
	t.Helper()
	data, err := os.ReadFile(s.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var out []types.LogEntry
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var e types.LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("log line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	return out
}

// waitEntries polls until the log holds n entries.
func (s *stack) waitEntries(t *testing.T, n int) []types.LogEntry {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := s.entries(t)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d log entries, got %d", n, len(got))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Package reqlog persists one record per generation request.
package reqlog

import (
	"encoding/json"
	"sync"
	"time"

	"minivault/internal/common/fsutil"
	"minivault/pkg/types"
)

// DefaultPath is the request log location relative to the working directory.
const DefaultPath = "logs/log.jsonl"

// Sink receives request log entries. Append must be safe for concurrent use.
type Sink interface {
	Append(types.LogEntry) error
}

// NewEntry stamps prompt and response with the current time.
func NewEntry(prompt, response string) types.LogEntry {
	return types.LogEntry{
		TS:       float64(time.Now().UnixNano()) / 1e9,
		Prompt:   prompt,
		Response: response,
	}
}

// FileSink appends NDJSON lines to a file, opening and closing it per entry.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a sink writing to path. The file and its directory are
// created lazily on the first Append.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultPath
	}
	return &FileSink{path: path}
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Append(e types.LogEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	// one whole line per write within this process
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsutil.AppendFile(s.path, b)
}

// MemorySink stores entries in-memory for tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Append(e types.LogEntry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Entries() []types.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

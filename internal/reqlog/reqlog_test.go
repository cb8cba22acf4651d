package reqlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minivault/pkg/types"
)

func readLines(t *testing.T, path string) []types.LogEntry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []types.LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e types.LogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), "line %q", sc.Text())
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFileSink_CreatesDirectoryOnFirstAppend(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "log.jsonl")
	s := NewFileSink(p)
	_, err := os.Stat(filepath.Dir(p))
	require.True(t, os.IsNotExist(err), "directory must not exist before first append")

	require.NoError(t, s.Append(NewEntry("hi", "Hello!")))

	got := readLines(t, p)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Prompt)
	assert.Equal(t, "Hello!", got[0].Response)
	assert.InDelta(t, float64(time.Now().Unix()), got[0].TS, 5)
}

func TestFileSink_LineSchema(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.jsonl")
	s := NewFileSink(p)
	require.NoError(t, s.Append(types.LogEntry{TS: 1.5, Prompt: "p", Response: "r"}))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ts":1.5,"prompt":"p","response":"r"}`, string(b))
	assert.Equal(t, byte('\n'), b[len(b)-1])
}

func TestFileSink_AppendsInOrder(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.jsonl")
	s := NewFileSink(p)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Append(NewEntry(fmt.Sprint(i), "x")))
	}
	got := readLines(t, p)
	require.Len(t, got, 3)
	for i, e := range got {
		assert.Equal(t, fmt.Sprint(i), e.Prompt)
	}
}

func TestFileSink_ConcurrentAppendsKeepWholeLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.jsonl")
	s := NewFileSink(p)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(NewEntry(fmt.Sprintf("p%d", i), "resp")))
		}(i)
	}
	wg.Wait()
	assert.Len(t, readLines(t, p), 20)
}

func TestNewFileSink_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewFileSink("").Path())
}

func TestMemorySink(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.Append(NewEntry("a", "b")))
	got := s.Entries()
	require.Len(t, got, 1)
	got[0].Prompt = "mutated"
	assert.Equal(t, "a", s.Entries()[0].Prompt)
}

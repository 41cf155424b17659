package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/promptguard/internal/sentinel"
)

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "validation.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())

	obs := blockedObservation(t)
	entry := NewEntry(context.Background(), obs)
	require.NoError(t, sink.Write(context.Background(), []Entry{entry, testEntry(sentinel.Safe)}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "BLOCKED", lines[0]["security_level"])
	assert.Equal(t, "text", lines[0]["input_type"])
	assert.NotContains(t, lines[0], "original_prompt")
	assert.Equal(t, "SAFE", lines[1]["security_level"])
}

func TestFileSink_ConcurrentWritersDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validation.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, sink.Write(context.Background(), []Entry{testEntry(sentinel.Warning)}))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		n++
	}
	assert.Equal(t, 200, n)
}

func TestFileSink_WriteAfterClose(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "v.jsonl"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Error(t, sink.Write(context.Background(), []Entry{testEntry(sentinel.Safe)}))
	assert.NoError(t, sink.Write(context.Background(), nil))
}

func TestMultiSink_WritesAllAndJoinsErrors(t *testing.T) {
	ok := &mockSink{}
	failing := &mockSink{err: errors.New("disk full")}
	multi := MultiSink{failing, ok}

	err := multi.Write(context.Background(), []Entry{testEntry(sentinel.Safe)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, ok.entryCount())
	assert.Equal(t, 1, failing.entryCount())
}

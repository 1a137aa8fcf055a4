package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingSink struct {
	mu   sync.Mutex
	puts []string
	data map[string][]byte
	err  error

	//when set, the first Put signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	first := len(s.puts) == 0
	s.puts = append(s.puts, string(data))
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[name] = data
	s.mu.Unlock()

	if first && s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.err
}

func newTestAdapter(t *testing.T, sinks ...DocumentSink) (*Adapter, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := NewFileStore(dir)
	require.NoError(t, err)
	return NewAdapter(files, sinks...), dir
}

func TestAdapterWritesLocalFileAndSinks(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{}
	adapter, dir := newTestAdapter(t, sink)

	adapter.Save("permissions.json", map[string][]string{"clr": {"R1"}})
	adapter.Close()

	raw, err := os.ReadFile(filepath.Join(dir, "permissions.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"clr\": [\n    \"R1\"\n  ]\n}\n", string(raw))
	assert.Equal(t, raw, sink.data["permissions.json"])
}

func TestAdapterSinkFailureIsNotFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	failing := &recordingSink{err: errors.New("boom")}
	healthy := &recordingSink{}
	adapter, dir := newTestAdapter(t, failing, healthy)

	adapter.Save("doc.json", []int{1, 2})
	adapter.Close()

	_, err := os.Stat(filepath.Join(dir, "doc.json"))
	assert.NoError(t, err, "local write must happen regardless of mirror failures")
	assert.Len(t, healthy.puts, 1, "later sinks still run after an earlier one fails")
}

func TestAdapterCoalescesPendingSaves(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{started: make(chan struct{}), release: make(chan struct{})}
	adapter, dir := newTestAdapter(t, sink)

	adapter.Save("doc.json", "first")
	<-sink.started
	adapter.Save("doc.json", "second")
	adapter.Save("doc.json", "third")
	close(sink.release)
	adapter.Close()

	assert.Equal(t, []string{"\"first\"\n", "\"third\"\n"}, sink.puts)
	raw, err := os.ReadFile(filepath.Join(dir, "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, "\"third\"\n", string(raw))
}

func TestAdapterSaveAfterCloseWritesSynchronously(t *testing.T) {
	defer goleak.VerifyNone(t)

	adapter, dir := newTestAdapter(t)
	adapter.Close()
	adapter.Close()

	adapter.Save("late.json", true)
	raw, err := os.ReadFile(filepath.Join(dir, "late.json"))
	require.NoError(t, err)
	assert.Equal(t, "true\n", string(raw))
}

func TestAdapterSaveDuringCloseWaitsForDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{started: make(chan struct{}), release: make(chan struct{})}
	adapter, dir := newTestAdapter(t, sink)
	adapter.Save("doc.json", "old")
	<-sink.started

	closed := make(chan struct{})
	go func() {
		adapter.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		adapter.mu.Lock()
		defer adapter.mu.Unlock()
		return adapter.closed
	}, time.Second, time.Millisecond)

	late := make(chan struct{})
	go func() {
		adapter.Save("doc.json", "new")
		close(late)
	}()
	select {
	case <-late:
		t.Fatal("late save finished while an older snapshot was still being written")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.release)
	<-late
	<-closed

	assert.Equal(t, []string{"\"old\"\n", "\"new\"\n"}, sink.puts)
	raw, err := os.ReadFile(filepath.Join(dir, "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, "\"new\"\n", string(raw))
}

func TestAdapterLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	adapter, dir := newTestAdapter(t)
	defer adapter.Close()

	t.Run("missing document leaves value empty", func(t *testing.T) {
		var v map[string][]string
		require.NoError(t, adapter.Load("absent.json", &v))
		assert.Nil(t, v)
	})

	t.Run("decodes existing document", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "present.json"), []byte(`{"set":["R1","R2"]}`), 0o644))
		var v map[string][]string
		require.NoError(t, adapter.Load("present.json", &v))
		assert.Equal(t, map[string][]string{"set": {"R1", "R2"}}, v)
	})

	t.Run("corrupt document is an error", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte(`{"set":`), 0o644))
		var v map[string][]string
		assert.Error(t, adapter.Load("corrupt.json", &v))
	})
}

func TestFileStoreWriteReplacesContents(t *testing.T) {
	files, err := NewFileStore(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)

	require.NoError(t, files.Write("a.json", []byte("one")))
	require.NoError(t, files.Write("a.json", []byte("two")))
	data, err := files.Read("a.json")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(files.Path("a.json")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

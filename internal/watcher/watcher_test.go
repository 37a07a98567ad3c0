package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingHandler struct {
	mu       sync.Mutex
	created  []string
	modified []string
	deleted  []string
	moved    [][2]string
}

func (r *recordingHandler) OnCreated(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, path)
	return nil
}

func (r *recordingHandler) OnModified(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modified = append(r.modified, path)
	return nil
}

func (r *recordingHandler) OnDeleted(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, path)
	return nil
}

func (r *recordingHandler) OnMoved(_ context.Context, oldPath, newPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved = append(r.moved, [2]string{oldPath, newPath})
	return nil
}

func (r *recordingHandler) counts() (created, modified, deleted, moved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created), len(r.modified), len(r.deleted), len(r.moved)
}

func testWatcherConfig(dir string) config.Watcher {
	return config.Watcher{
		Directories:     []string{dir},
		Extensions:      []string{".md", ".txt"},
		IgnorePatterns:  []string{"*.tmp", "*.skip.md"},
		DebounceDelayMs: 50,
		BatchDelayMs:    80,
		Recursive:       true,
		MaxFileSizeMB:   10,
	}
}

func startWatcher(t *testing.T, cfg config.Watcher, handler Handler) *Watcher {
	t.Helper()
	w := New(cfg, handler, logging.Discard())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestDebounceCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	handler := &recordingHandler{}
	startWatcher(t, testWatcherConfig(dir), handler)

	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rewrite"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		created, modified, _, _ := handler.counts()
		return created+modified >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// settle past another debounce window to catch late duplicates
	time.Sleep(150 * time.Millisecond)
	created, modified, deleted, _ := handler.counts()
	assert.Equal(t, 1, created+modified, "rapid events for one path must coalesce into one dispatch")
	assert.Equal(t, 1, created, "a new file dispatches as a create even when writes follow")
	assert.Zero(t, deleted)
}

func TestBatchModeProcessesAllPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := testWatcherConfig(dir)
	cfg.BatchProcessing = true
	handler := &recordingHandler{}
	startWatcher(t, cfg, handler)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	require.Eventually(t, func() bool {
		created, _, _, _ := handler.counts()
		return created == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteDispatches(t *testing.T) {
	dir := t.TempDir()
	handler := &recordingHandler{}

	path := filepath.Join(dir, "gone.md")
	require.NoError(t, os.WriteFile(path, []byte("body"), 0o644))
	startWatcher(t, testWatcherConfig(dir), handler)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, _, deleted, _ := handler.counts()
		return deleted == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIgnoredPathsNeverDispatch(t *testing.T) {
	dir := t.TempDir()
	handler := &recordingHandler{}
	startWatcher(t, testWatcherConfig(dir), handler)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.skip.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	created, modified, deleted, moved := handler.counts()
	assert.Zero(t, created+modified+deleted+moved)
}

func TestStartSkipsMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := testWatcherConfig(dir)
	cfg.Directories = append(cfg.Directories, filepath.Join(dir, "does-not-exist"))
	handler := &recordingHandler{}
	startWatcher(t, cfg, handler)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "alive.md"), []byte("body"), 0o644))
	require.Eventually(t, func() bool {
		created, _, _, _ := handler.counts()
		return created == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartFailsWithNoWatchableDirectories(t *testing.T) {
	cfg := testWatcherConfig(filepath.Join(t.TempDir(), "missing"))
	w := New(cfg, &recordingHandler{}, logging.Discard())
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no watchable directories")
}

func TestOversizedFilesNeverDispatch(t *testing.T) {
	dir := t.TempDir()
	cfg := testWatcherConfig(dir)
	cfg.MaxFileSizeMB = 1
	handler := &recordingHandler{}
	startWatcher(t, cfg, handler)

	big := make([]byte, 1536*1024)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "huge.md"), big, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.md"), []byte("fits"), 0o644))

	require.Eventually(t, func() bool {
		created, _, _, _ := handler.counts()
		return created == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.created, 1)
	assert.Equal(t, "small.md", filepath.Base(handler.created[0]))
}

func TestStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := New(testWatcherConfig(dir), &recordingHandler{}, logging.Discard())
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "second stop is a no-op")
}

func TestCheckHealth(t *testing.T) {
	dir := t.TempDir()
	handler := &recordingHandler{}
	w := startWatcher(t, testWatcherConfig(dir), handler)

	h := w.CheckHealth()
	assert.True(t, h.Healthy)
	assert.Empty(t, h.Issues)

	stopped := New(testWatcherConfig(dir), handler, logging.Discard())
	h = stopped.CheckHealth()
	assert.False(t, h.Healthy)
	assert.NotEmpty(t, h.Issues)
}

func TestCheckHealthReportsMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "later")
	require.NoError(t, os.Mkdir(gone, 0o755))

	cfg := testWatcherConfig(dir)
	cfg.Directories = append(cfg.Directories, gone)
	w := startWatcher(t, cfg, &recordingHandler{})

	require.NoError(t, os.Remove(gone))

	h := w.CheckHealth()
	assert.False(t, h.Healthy)
	require.NotEmpty(t, h.Issues)
	assert.Contains(t, h.Issues[0], "watch directory missing")
}

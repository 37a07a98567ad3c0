package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/tools"
)

type fakeIngestor struct {
	mu       sync.Mutex
	known    map[string]bool
	ingested []string
	removed  []string
	moved    [][2]string
	failWith error
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{known: make(map[string]bool)}
}

func (f *fakeIngestor) IngestPath(_ context.Context, path string, _ bool) (*tools.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	status := "indexed"
	if f.known[path] {
		status = "reindexed"
	}
	f.known[path] = true
	f.ingested = append(f.ingested, path)
	return &tools.IngestResult{FilePath: path, Status: status}, nil
}

func (f *fakeIngestor) RemovePath(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := f.known[path]
	delete(f.known, path)
	f.removed = append(f.removed, path)
	return removed, nil
}

func (f *fakeIngestor) MovePath(ctx context.Context, oldPath, newPath string) (*tools.IngestResult, error) {
	f.mu.Lock()
	f.moved = append(f.moved, [2]string{oldPath, newPath})
	delete(f.known, oldPath)
	f.mu.Unlock()
	return f.IngestPath(ctx, newPath, true)
}

func TestDispatcherEventMapping(t *testing.T) {
	ingestor := newFakeIngestor()
	d := NewDispatcher(ingestor, logging.Discard())
	ctx := context.Background()

	require.NoError(t, d.OnCreated(ctx, "/docs/a.md"))
	assert.Equal(t, []string{"/docs/a.md"}, ingestor.ingested)

	// an edit to an untracked path still lands in the store
	require.NoError(t, d.OnModified(ctx, "/docs/unknown.md"))
	require.Len(t, ingestor.ingested, 2)
	assert.Equal(t, "/docs/unknown.md", ingestor.ingested[1])

	require.NoError(t, d.OnModified(ctx, "/docs/a.md"))
	assert.Len(t, ingestor.ingested, 3)

	require.NoError(t, d.OnMoved(ctx, "/docs/a.md", "/docs/b.md"))
	assert.Equal(t, [2]string{"/docs/a.md", "/docs/b.md"}, ingestor.moved[0])

	require.NoError(t, d.OnDeleted(ctx, "/docs/b.md"))
	assert.Contains(t, ingestor.removed, "/docs/b.md")
}

func TestDispatcherSwallowsBenignFailures(t *testing.T) {
	ingestor := newFakeIngestor()
	d := NewDispatcher(ingestor, logging.Discard())
	ctx := context.Background()

	ingestor.failWith = errors.NewDocumentError(errors.ErrorTypeEmptyContent, "index",
		fmt.Errorf("empty"))
	assert.NoError(t, d.OnCreated(ctx, "/docs/empty.md"),
		"empty files must not count against watcher health")

	ingestor.failWith = errors.NewDocumentError(errors.ErrorTypeNotFound, "index",
		fmt.Errorf("gone"))
	assert.NoError(t, d.OnCreated(ctx, "/docs/gone.md"))

	ingestor.failWith = errors.NewStoreError("ingest", fmt.Errorf("disk full"))
	assert.Error(t, d.OnCreated(ctx, "/docs/fail.md"),
		"store failures must surface")
}

func TestManualScan(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("beta"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("img"), 0o644))

	ingestor := newFakeIngestor()
	d := NewDispatcher(ingestor, logging.Discard())

	cfg := config.Watcher{
		Directories: []string{dir},
		Extensions:  []string{".md", ".txt"},
		Recursive:   true,
	}
	report, err := d.ManualScan(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Scanned)
	assert.Equal(t, int64(2), report.Indexed)
	assert.Zero(t, report.Failed)
}

func TestManualScanNonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.md"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.md"), []byte("deep"), 0o644))

	ingestor := newFakeIngestor()
	d := NewDispatcher(ingestor, logging.Discard())

	cfg := config.Watcher{Directories: []string{dir}, Extensions: []string{".md"}}
	report, err := d.ManualScan(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.Scanned, "non-recursive scan stays at the top level")
}

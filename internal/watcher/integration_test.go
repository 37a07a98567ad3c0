package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/parser"
	"github.com/standardbeagle/mydocs/internal/search"
	"github.com/standardbeagle/mydocs/internal/storage"
	"github.com/standardbeagle/mydocs/internal/tools"
)

// TestRapidWritesYieldOneDocumentRow drives the full pipeline: watcher events
// through the dispatcher into the ingest layer and the store. Five rapid
// writes to one file must leave exactly one document row.
func TestRapidWritesYieldOneDocumentRow(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	log := logging.Discard()

	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "docs.db"), 4, log)
	require.NoError(t, err)
	engine := search.NewEngine(store, time.Minute, true, log)
	handlers := tools.NewHandlers(config.Default(), store, engine, parser.NewRegistry(log), log)
	t.Cleanup(func() {
		engine.Close()
		store.Close()
	})

	cfg := testWatcherConfig(dir)
	startWatcher(t, cfg, NewDispatcher(handlers, log))

	path := filepath.Join(dir, "draft.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("# Draft\n\nrevision notes\n"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		n, err := store.CountDocuments(ctx)
		return err == nil && n == 1
	}, 3*time.Second, 20*time.Millisecond)

	// settle past another debounce window, then confirm nothing duplicated
	time.Sleep(200 * time.Millisecond)
	n, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "coalesced writes must not create extra rows")

	doc, err := store.GetByPath(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "md", doc.FileType)
}

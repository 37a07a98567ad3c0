package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/mydocs/internal/errors"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), 4, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(path string) *types.Document {
	now := time.Now()
	return &types.Document{
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileType:   "md",
		FileSize:   42,
		FileHash:   strings.Repeat("a", 64),
		CreatedAt:  now,
		ModifiedAt: now,
		IndexedAt:  now,
		Content:    "docker compose deployment notes",
		Metadata:   map[string]string{"title": "Notes"},
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	store := openTestStore(t)

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.True(t, store.IsFresh())
}

func TestCreateAndGetDocument(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/notes.md")
	id, err := store.CreateDocument(ctx, doc)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.FilePath, got.FilePath)
	assert.Equal(t, doc.FileHash, got.FileHash)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, "Notes", got.Metadata["title"])
	assert.WithinDuration(t, doc.ModifiedAt, got.ModifiedAt, time.Millisecond)

	byPath, err := store.GetByPath(ctx, doc.FilePath)
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, id, byPath.ID)
}

func TestGetAbsentDocumentReturnsNil(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	got, err := store.GetByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, got)

	byPath, err := store.GetByPath(ctx, "/nowhere.md")
	require.NoError(t, err)
	assert.Nil(t, byPath)
}

func TestDuplicatePathRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.CreateDocument(ctx, testDocument("/docs/dup.md"))
	require.NoError(t, err)

	_, err = store.CreateDocument(ctx, testDocument("/docs/dup.md"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeDuplicate, errors.TypeOf(err))
}

func TestIngestCreatesThenUpdates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/ingest.md")
	entries := []types.IndexEntry{
		{Keyword: "docker", Frequency: 2, Positions: []int{0, 4}, Relevance: 0.5},
		{Keyword: "notes", Frequency: 1, Positions: []int{3}, Relevance: 0.2},
	}

	id, created, err := store.Ingest(ctx, doc, entries)
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := store.IndexEntriesFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "docker", stored[0].Keyword)
	assert.Equal(t, []int{0, 4}, stored[0].Positions)

	doc.Content = "updated content"
	id2, created, err := store.Ingest(ctx, doc, entries[:1])
	require.NoError(t, err)
	assert.False(t, created, "reingest of the same path must update in place")
	assert.Equal(t, id, id2)

	stored, err = store.IndexEntriesFor(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "old index rows must be replaced")
}

func TestDeleteCascadesToIndexRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/cascade.md")
	id, _, err := store.Ingest(ctx, doc, []types.IndexEntry{
		{Keyword: "docker", Frequency: 1, Positions: []int{0}, Relevance: 0.3},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(ctx, id))

	entries, err := store.IndexEntriesFor(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries, "index rows must cascade on document delete")

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteByPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.CreateDocument(ctx, testDocument("/docs/bye.md"))
	require.NoError(t, err)

	removed, err := store.DeleteDocumentByPath(ctx, "/docs/bye.md")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.DeleteDocumentByPath(ctx, "/docs/bye.md")
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")
}

func TestScoreKeywordsOrdersAndFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	strong := testDocument("/docs/strong.md")
	strong.Content = "docker docker docker"
	_, _, err := store.Ingest(ctx, strong, []types.IndexEntry{
		{Keyword: "docker", Frequency: 3, Positions: []int{0, 1, 2}, Relevance: 0.9},
	})
	require.NoError(t, err)

	weak := testDocument("/docs/weak.txt")
	weak.FileType = "txt"
	weak.Content = "docker mentioned once"
	_, _, err = store.Ingest(ctx, weak, []types.IndexEntry{
		{Keyword: "docker", Frequency: 1, Positions: []int{0}, Relevance: 0.1},
	})
	require.NoError(t, err)

	scored, err := store.ScoreKeywords(ctx, []string{"docker"}, "", 10)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "/docs/strong.md", scored[0].Document.FilePath, "highest total score first")
	assert.Greater(t, scored[0].BaseScore, scored[1].BaseScore)

	mdOnly, err := store.ScoreKeywords(ctx, []string{"docker"}, "md", 10)
	require.NoError(t, err)
	require.Len(t, mdOnly, 1)
	assert.Equal(t, "md", mdOnly[0].Document.FileType)
}

func TestSearchFTSMatchesMirroredContent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/pipeline.md")
	doc.Content = "the deployment pipeline restarts on every merge"
	_, _, err := store.Ingest(ctx, doc, []types.IndexEntry{
		{Keyword: "deployment", Frequency: 1, Positions: []int{1}, Relevance: 0.5},
	})
	require.NoError(t, err)

	other := testDocument("/docs/other.txt")
	other.FileType = "txt"
	other.Content = "deployment checklist"
	_, _, err = store.Ingest(ctx, other, []types.IndexEntry{
		{Keyword: "deployment", Frequency: 1, Positions: []int{0}, Relevance: 0.5},
	})
	require.NoError(t, err)

	// "restarts" never made it into the keyword index
	scored, err := store.ScoreKeywords(ctx, []string{"restarts"}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, scored)

	scored, err = store.SearchFTS(ctx, []string{"restarts"}, "", 10)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "/docs/pipeline.md", scored[0].Document.FilePath)

	mdOnly, err := store.SearchFTS(ctx, []string{"deployment"}, "md", 10)
	require.NoError(t, err)
	require.Len(t, mdOnly, 1)
	assert.Equal(t, "md", mdOnly[0].Document.FileType)
}

func TestSearchFTSTracksUpdatesAndDeletes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/tracked.md")
	doc.Content = "original wording"
	id, _, err := store.Ingest(ctx, doc, nil)
	require.NoError(t, err)

	doc.Content = "rewritten wording"
	_, _, err = store.Ingest(ctx, doc, nil)
	require.NoError(t, err)

	scored, err := store.SearchFTS(ctx, []string{"original"}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, scored, "update trigger must replace the mirrored row")

	scored, err = store.SearchFTS(ctx, []string{"rewritten"}, "", 10)
	require.NoError(t, err)
	require.Len(t, scored, 1)

	require.NoError(t, store.DeleteDocument(ctx, id))
	scored, err = store.SearchFTS(ctx, []string{"rewritten"}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, scored, "delete trigger must drop the mirrored row")
}

func TestCacheRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheResults(ctx, "abc123", "docker notes", `[{"id":1}]`, time.Minute))

	entry, err := store.GetCachedResults(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, `[{"id":1}]`, entry.Results)
	assert.Equal(t, 1, entry.HitCount, "hit count bumps on read")

	entry, err = store.GetCachedResults(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.HitCount)
}

func TestCacheExpiredEntriesInvisible(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheResults(ctx, "short", "q", "[]", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	entry, err := store.GetCachedResults(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, entry)

	removed, err := store.CleanupExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestTouchCacheBumpsHitCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheResults(ctx, "touched", "q", "[]", time.Minute))
	require.NoError(t, store.TouchCache(ctx, "touched"))

	entry, err := store.GetCachedResults(ctx, "touched")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.HitCount, "touch plus this read's bump")
}

func TestCacheUpsertResetsHitCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CacheResults(ctx, "key", "q", "[1]", time.Minute))
	_, err := store.GetCachedResults(ctx, "key")
	require.NoError(t, err)

	require.NoError(t, store.CacheResults(ctx, "key", "q", "[2]", time.Minute))
	entry, err := store.GetCachedResults(ctx, "key")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "[2]", entry.Results)
	assert.Equal(t, 1, entry.HitCount, "rewrite resets the counter before this read's bump")
}

func TestUpdateDocumentPath(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument("/docs/old.md")
	id, err := store.CreateDocument(ctx, doc)
	require.NoError(t, err)

	require.NoError(t, store.UpdateDocumentPath(ctx, id, "/docs/new.txt", "new.txt", "txt"))

	got, err := store.GetByPath(ctx, "/docs/new.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "txt", got.FileType)

	err = store.UpdateDocumentPath(ctx, 99999, "/x", "x", "md")
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestTags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateDocument(ctx, testDocument("/docs/tagged.md"))
	require.NoError(t, err)

	require.NoError(t, store.TagDocument(ctx, id, "work"))
	require.NoError(t, store.TagDocument(ctx, id, "archive"))
	require.NoError(t, store.TagDocument(ctx, id, "work"))

	tags, err := store.TagsFor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "work"}, tags)
}

func TestMigrateDownAndBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MigrateTo(ctx, 1))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	require.NoError(t, store.MigrateTo(ctx, 2))
	version, err = store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestGetStatistics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, _, err := store.Ingest(ctx, testDocument("/docs/stats.md"), []types.IndexEntry{
		{Keyword: "docker", Frequency: 1, Positions: []int{0}, Relevance: 0.3},
	})
	require.NoError(t, err)

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DocumentCount)
	assert.Equal(t, int64(1), stats.IndexEntries)
	assert.Equal(t, 2, stats.SchemaVersion)
	assert.Positive(t, stats.DatabaseBytes)
}

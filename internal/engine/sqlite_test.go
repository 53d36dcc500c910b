package engine

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridtext/gridtext/internal/mapping"
)

// requireFTS5 skips the test when the linked SQLite build lacks the FTS5
// module.
func requireFTS5(t *testing.T) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE VIRTUAL TABLE probe USING fts5(body)`)
	if err != nil && strings.Contains(err.Error(), "fts5") {
		t.Skipf("sqlite build without FTS5: %v", err)
	}
	require.NoError(t, err)
}

func openTestEngine(t *testing.T, partitionID int) (*SQLiteEngine, *ConnectionPool) {
	t.Helper()
	pool := NewConnectionPool(DefaultPoolConfig())
	t.Cleanup(func() { pool.Close() })

	e, err := OpenSQLite(pool, t.TempDir(), partitionID, Options{RAMBufferMB: 5, MaxCachedMB: 16})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, pool
}

func TestSQLiteEngine_UpsertQueryDelete(t *testing.T) {
	requireFTS5(t)
	ctx := context.Background()
	e, _ := openTestEngine(t, 0)

	doc := Document{ID: "k1", Fields: []mapping.Field{
		{Name: "title", Value: "distributed search"},
		{Name: "year", Value: int64(2026)},
	}}
	require.NoError(t, e.Upsert(ctx, doc))
	require.NoError(t, e.Upsert(ctx, Document{ID: "k2", Fields: []mapping.Field{
		{Name: "title", Value: "centralized storage"},
	}}))

	hits, err := e.Query(ctx, "search", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "k1", hits[0].DocID)
	assert.Equal(t, 0, hits[0].Partition)
	assert.Greater(t, hits[0].Score, 0.0)

	// Stored payload survives the snappy+JSON round trip.
	assert.Equal(t, "distributed search", hits[0].Payload["title"])

	require.NoError(t, e.Delete(ctx, "k1"))
	hits, err = e.Query(ctx, "search", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Absent id delete is a no-op.
	require.NoError(t, e.Delete(ctx, "never-existed"))
}

func TestSQLiteEngine_UpsertReplacesAndBumpsSeq(t *testing.T) {
	requireFTS5(t)
	ctx := context.Background()
	e, _ := openTestEngine(t, 0)

	require.NoError(t, e.Upsert(ctx, memDocOf("a", "first version")))
	require.NoError(t, e.Upsert(ctx, memDocOf("a", "second version")))

	hits, err := e.Query(ctx, "version", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Seq)

	hits, err = e.Query(ctx, "first", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteEngine_CursorPagination(t *testing.T) {
	requireFTS5(t)
	ctx := context.Background()
	e, _ := openTestEngine(t, 0)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, e.Upsert(ctx, memDocOf(id, "shared words here")))
	}

	seen := make(map[string]bool)
	var cursor []byte
	pages := 0
	for {
		hits, err := e.Query(ctx, "shared", cursor, 2)
		require.NoError(t, err)
		if len(hits) == 0 {
			break
		}
		pages++
		require.LessOrEqual(t, pages, 5, "pagination must terminate")
		for _, h := range hits {
			assert.False(t, seen[h.DocID], "doc %s repeated across pages", h.DocID)
			seen[h.DocID] = true
		}
		last := hits[len(hits)-1]
		cursor = EncodeCursor(last.Score, last.Seq)
	}
	assert.Len(t, seen, 5)
}

func TestSQLiteEngine_OptimizeAndCommit(t *testing.T) {
	requireFTS5(t)
	ctx := context.Background()
	e, _ := openTestEngine(t, 0)

	require.NoError(t, e.Upsert(ctx, memDocOf("a", "some body")))
	require.NoError(t, e.Commit(ctx))
	require.NoError(t, e.Optimize(ctx))
	require.NoError(t, e.Reconfigure(ctx, Options{MaxCachedMB: 32, RAMBufferMB: 8}))
}

func TestSQLiteEngine_ReopenKeepsDocumentsAndSequence(t *testing.T) {
	requireFTS5(t)
	ctx := context.Background()
	pool := NewConnectionPool(DefaultPoolConfig())
	defer pool.Close()
	dir := t.TempDir()

	e, err := OpenSQLite(pool, dir, 1, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Upsert(ctx, memDocOf("a", "persisted")))
	require.NoError(t, e.Close())

	e, err = OpenSQLite(pool, dir, 1, Options{})
	require.NoError(t, err)
	defer e.Close()

	hits, err := e.Query(ctx, "persisted", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Partition)

	// New writes continue the persisted sequence.
	require.NoError(t, e.Upsert(ctx, memDocOf("b", "persisted too")))
	hits, err = e.Query(ctx, "persisted", nil, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[1].Seq)
}

func TestConnectionPool_SharesAndRefCounts(t *testing.T) {
	ctx := context.Background()
	pool := NewConnectionPool(PoolConfig{MaxTotalConnections: 2})
	defer pool.Close()

	path := t.TempDir() + "/p.db"
	a, err := pool.Get(ctx, path)
	require.NoError(t, err)
	b, err := pool.Get(ctx, path)
	require.NoError(t, err)
	assert.Same(t, a, b)

	pool.Release(path)
	pool.Release(path)
}

func TestConnectionPool_EvictsIdleWhenFull(t *testing.T) {
	ctx := context.Background()
	pool := NewConnectionPool(PoolConfig{MaxTotalConnections: 1})
	defer pool.Close()

	dir := t.TempDir()
	_, err := pool.Get(ctx, dir+"/one.db")
	require.NoError(t, err)
	pool.Release(dir + "/one.db")

	// The idle handle is evicted to make room.
	_, err = pool.Get(ctx, dir+"/two.db")
	require.NoError(t, err)

	// A referenced handle cannot be evicted.
	_, err = pool.Get(ctx, dir+"/three.db")
	require.Error(t, err)
}

func TestConnectionPool_ClosedRejectsGets(t *testing.T) {
	pool := NewConnectionPool(DefaultPoolConfig())
	require.NoError(t, pool.Close())

	_, err := pool.Get(context.Background(), "whatever.db")
	require.Error(t, err)
}

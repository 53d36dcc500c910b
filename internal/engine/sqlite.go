package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/gridtext/gridtext/internal/bloom"
	"github.com/gridtext/gridtext/pkg/types"
)

// SQLiteFactory builds persistent partition engines backed by SQLite FTS5.
// All engines created by one factory share its connection pool.
type SQLiteFactory struct {
	pool *ConnectionPool
}

// NewSQLiteFactory creates a factory over the given pool. A nil pool gets the
// default configuration.
func NewSQLiteFactory(pool *ConnectionPool) *SQLiteFactory {
	if pool == nil {
		pool = NewConnectionPool(DefaultPoolConfig())
	}
	return &SQLiteFactory{pool: pool}
}

// Opener adapts the factory to the partition-opening contract.
func (f *SQLiteFactory) Opener() Opener {
	return func(directory string, partitionID int, opts Options) (Engine, error) {
		return OpenSQLite(f.pool, directory, partitionID, opts)
	}
}

// Close shuts down the factory's connection pool.
func (f *SQLiteFactory) Close() error {
	return f.pool.Close()
}

// SQLiteEngine is one index partition stored in a single SQLite file with an
// FTS5 search table. Document bodies go through FTS5; stored payloads are
// snappy-compressed JSON in a side table keyed by a 64-bit hash of the
// document id.
type SQLiteEngine struct {
	mu        sync.Mutex
	pool      *ConnectionPool
	db        *sql.DB
	path      string
	partition int
	seq       int64
	closed    bool

	// known tracks ids ever written to this partition so deletes of absent
	// ids skip the round trip. Deleted ids stay in the filter; that only
	// costs a harmless extra lookup.
	known *bloom.Filter
}

// bloomExpectedDocs sizes the presence filter; at 1% false positives this is
// about 120 KiB per partition.
const bloomExpectedDocs = 100_000

const partitionSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id      INTEGER PRIMARY KEY,
	doc_id  TEXT    NOT NULL UNIQUE,
	seq     INTEGER NOT NULL,
	payload BLOB
);
CREATE VIRTUAL TABLE IF NOT EXISTS search USING fts5(body);
`

// OpenSQLite opens (creating if needed) the partition file under directory
// and prepares its tables.
func OpenSQLite(pool *ConnectionPool, directory string, partitionID int, opts Options) (*SQLiteEngine, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite engine: failed to create directory %s: %w", directory, err)
	}
	path := filepath.Join(directory, fmt.Sprintf("s_%d.db", partitionID))

	ctx := context.Background()
	db, err := pool.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, partitionSchema); err != nil {
		pool.Release(path)
		return nil, fmt.Errorf("sqlite engine: failed to prepare partition %d: %w", partitionID, err)
	}

	e := &SQLiteEngine{pool: pool, db: db, path: path, partition: partitionID}
	if err := e.applyOptions(ctx, opts); err != nil {
		pool.Release(path)
		return nil, err
	}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM documents`).Scan(&e.seq); err != nil {
		pool.Release(path)
		return nil, fmt.Errorf("sqlite engine: failed to read sequence for partition %d: %w", partitionID, err)
	}
	if err := e.seedFilter(ctx); err != nil {
		pool.Release(path)
		return nil, err
	}
	return e, nil
}

// seedFilter rebuilds the presence filter from the stored document ids.
func (e *SQLiteEngine) seedFilter(ctx context.Context) error {
	e.known = bloom.New(bloomExpectedDocs, 0.01)

	rows, err := e.db.QueryContext(ctx, `SELECT doc_id FROM documents`)
	if err != nil {
		return fmt.Errorf("sqlite engine: failed to seed presence filter for partition %d: %w", e.partition, err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return fmt.Errorf("sqlite engine: failed to seed presence filter for partition %d: %w", e.partition, err)
		}
		e.known.Add(docID)
	}
	return rows.Err()
}

// applyOptions maps the engine knobs onto SQLite pragmas: the cache cap onto
// the page cache, the writer buffer onto the WAL checkpoint threshold.
func (e *SQLiteEngine) applyOptions(ctx context.Context, opts Options) error {
	if opts.MaxCachedMB > 0 {
		// Negative cache_size is a size in KiB rather than pages.
		kib := int64(opts.MaxCachedMB * 1024)
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("PRAGMA cache_size = -%d", kib)); err != nil {
			return fmt.Errorf("sqlite engine: failed to set cache size: %w", err)
		}
	}
	if opts.RAMBufferMB > 0 {
		pages := int64(opts.RAMBufferMB * 256) // 4 KiB pages
		if pages < 1 {
			pages = 1
		}
		if _, err := e.db.ExecContext(ctx, fmt.Sprintf("PRAGMA wal_autocheckpoint = %d", pages)); err != nil {
			return fmt.Errorf("sqlite engine: failed to set checkpoint threshold: %w", err)
		}
	}
	return nil
}

// docRowID derives the stable 64-bit rowid shared by the documents and
// search tables.
func docRowID(docID string) int64 {
	return int64(xxhash.Sum64String(docID))
}

// Upsert replaces any existing document under the same id and assigns it a
// fresh sequence number.
func (e *SQLiteEngine) Upsert(ctx context.Context, doc Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("sqlite engine: partition %d is closed", e.partition)
	}

	rowID := docRowID(doc.ID)
	payload, err := encodePayload(doc)
	if err != nil {
		return err
	}
	body := documentBody(doc)
	e.seq++
	seq := e.seq

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite engine: failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("sqlite engine: failed to clear search row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, doc_id, seq, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc_id = excluded.doc_id, seq = excluded.seq, payload = excluded.payload`,
		rowID, doc.ID, seq, payload); err != nil {
		return fmt.Errorf("sqlite engine: failed to store document %q: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO search (rowid, body) VALUES (?, ?)`, rowID, body); err != nil {
		return fmt.Errorf("sqlite engine: failed to index document %q: %w", doc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite engine: failed to commit upsert of %q: %w", doc.ID, err)
	}
	e.known.Add(doc.ID)
	return nil
}

// Delete removes a document by id; deleting an absent id is a no-op.
func (e *SQLiteEngine) Delete(ctx context.Context, docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("sqlite engine: partition %d is closed", e.partition)
	}
	if !e.known.MightContain(docID) {
		return nil
	}

	rowID := docRowID(docID)
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite engine: failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search WHERE rowid = ?`, rowID); err != nil {
		return fmt.Errorf("sqlite engine: failed to delete search row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, rowID); err != nil {
		return fmt.Errorf("sqlite engine: failed to delete document %q: %w", docID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite engine: failed to commit delete of %q: %w", docID, err)
	}
	return nil
}

// Query runs an FTS5 MATCH expression and returns hits ranked by score
// descending, sequence ascending, resuming after the cursor position. Scores
// are negated bm25 ranks, so higher is better.
func (e *SQLiteEngine) Query(ctx context.Context, expr string, after types.Cursor, limit int) ([]types.SearchHit, error) {
	query := `
		SELECT d.doc_id, d.seq, d.payload, -bm25(search) AS score
		FROM search JOIN documents d ON d.id = search.rowid
		WHERE search MATCH ?`
	args := []any{expr}

	if score, seq, ok := DecodeCursor(after); ok {
		query += ` AND (-bm25(search) < ? OR (-bm25(search) = ? AND d.seq > ?))`
		args = append(args, score, score, seq)
	}
	query += ` ORDER BY score DESC, d.seq ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite engine: query failed on partition %d: %w", e.partition, err)
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var (
			hit  types.SearchHit
			blob []byte
		)
		if err := rows.Scan(&hit.DocID, &hit.Seq, &blob, &hit.Score); err != nil {
			return nil, fmt.Errorf("sqlite engine: failed to scan hit: %w", err)
		}
		hit.Partition = e.partition
		if hit.Payload, err = decodePayload(blob); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite engine: query failed on partition %d: %w", e.partition, err)
	}
	return hits, nil
}

// Commit checkpoints the WAL so pending writes reach the main database file.
func (e *SQLiteEngine) Commit(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		return fmt.Errorf("sqlite engine: checkpoint failed on partition %d: %w", e.partition, err)
	}
	return nil
}

// Optimize merges the FTS5 index segments into a minimal structure.
func (e *SQLiteEngine) Optimize(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, `INSERT INTO search (search) VALUES ('optimize')`); err != nil {
		return fmt.Errorf("sqlite engine: optimize failed on partition %d: %w", e.partition, err)
	}
	return nil
}

// Reconfigure reapplies the tunable pragmas on the live partition.
func (e *SQLiteEngine) Reconfigure(ctx context.Context, opts Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("sqlite engine: partition %d is closed", e.partition)
	}
	return e.applyOptions(ctx, opts)
}

// Close releases the partition's pooled handle. The underlying file handle
// is closed by the pool once unreferenced.
func (e *SQLiteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.pool.Release(e.path)
	return nil
}

// documentBody flattens the mapped fields into the FTS5 body text.
func documentBody(doc Document) string {
	var b strings.Builder
	for i, f := range doc.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v", f.Value)
	}
	return b.String()
}

// encodePayload renders the stored fields as snappy-compressed JSON.
func encodePayload(doc Document) ([]byte, error) {
	stored := make(map[string]any, len(doc.Fields))
	for _, f := range doc.Fields {
		stored[f.Name] = f.Value
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("sqlite engine: failed to encode payload of %q: %w", doc.ID, err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodePayload(blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("sqlite engine: failed to decompress payload: %w", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("sqlite engine: failed to decode payload: %w", err)
	}
	return stored, nil
}

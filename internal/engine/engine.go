// Package engine defines the full-text engine capability consumed by the
// index runtime: build a document from named fields, search a partition with
// a query, commit. Two implementations ship with the package: a SQLite FTS5
// backed engine for persistent partitions and an in-memory engine for tests.
package engine

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/gridtext/gridtext/internal/mapping"
	"github.com/gridtext/gridtext/pkg/types"
)

// Document is one search document built from a row by the schema's mappers.
type Document struct {
	// ID is the document identifier derived from the entity key.
	ID string

	// Fields are the mapped document fields.
	Fields []mapping.Field
}

// Options carries the operational knobs a partition engine honors. They map
// from the index-level configuration and may be adjusted on a live engine
// during a hot swap.
type Options struct {
	RAMBufferMB    float64
	MaxCachedMB    float64
	RefreshSeconds float64
}

// Engine is one index partition of the underlying full-text engine.
type Engine interface {
	// Upsert inserts or replaces a document.
	Upsert(ctx context.Context, doc Document) error

	// Delete removes a document by id. Deleting an absent document is a
	// no-op.
	Delete(ctx context.Context, docID string) error

	// Query runs a search expression and returns hits ranked by score
	// descending with the intra-partition sequence as tiebreak, starting
	// after the given cursor position.
	Query(ctx context.Context, expr string, after types.Cursor, limit int) ([]types.SearchHit, error)

	// Commit makes pending writes durable and visible to searches.
	Commit(ctx context.Context) error

	// Optimize compacts the partition's index structures.
	Optimize(ctx context.Context) error

	// Reconfigure applies new operational options to the live partition.
	Reconfigure(ctx context.Context, opts Options) error

	// Close releases the partition's resources.
	Close() error
}

// Opener creates the engine for one partition of an index rooted at
// directory.
type Opener func(directory string, partitionID int, opts Options) (Engine, error)

// EncodeCursor renders a (score, seq) scan position as an opaque resume
// token.
func EncodeCursor(score float64, seq int64) types.Cursor {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], math.Float64bits(score))
	binary.BigEndian.PutUint64(b[8:], uint64(seq))
	return types.Cursor(b[:])
}

// DecodeCursor recovers the scan position from a resume token. A zero or
// malformed cursor reports ok=false, meaning "start from the beginning".
func DecodeCursor(c types.Cursor) (score float64, seq int64, ok bool) {
	if len(c) != 16 {
		return 0, 0, false
	}
	score = math.Float64frombits(binary.BigEndian.Uint64(c[:8]))
	seq = int64(binary.BigEndian.Uint64(c[8:]))
	return score, seq, true
}

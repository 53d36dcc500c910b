package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gridtext/gridtext/pkg/types"
)

// MemoryEngine is an in-process partition engine used in tests and as a
// reference for the capability contract. Scoring is term-frequency based:
// the score of a document is the number of query terms it contains.
type MemoryEngine struct {
	mu        sync.RWMutex
	partition int
	seq       int64
	docs      map[string]*memDoc
	closed    bool
}

type memDoc struct {
	seq     int64
	terms   map[string]int
	payload map[string]any
}

// NewMemoryEngine creates an empty in-memory partition.
func NewMemoryEngine(partitionID int) *MemoryEngine {
	return &MemoryEngine{partition: partitionID, docs: make(map[string]*memDoc)}
}

// OpenMemory is an Opener building in-memory partitions. The directory is
// ignored.
func OpenMemory(_ string, partitionID int, _ Options) (Engine, error) {
	return NewMemoryEngine(partitionID), nil
}

// Upsert replaces any existing document under the same id. The document
// takes a fresh sequence number.
func (e *MemoryEngine) Upsert(_ context.Context, doc Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("memory engine: partition %d is closed", e.partition)
	}
	e.seq++
	d := &memDoc{seq: e.seq, terms: make(map[string]int), payload: make(map[string]any)}
	for _, f := range doc.Fields {
		d.payload[f.Name] = f.Value
		for _, term := range tokenize(fmt.Sprintf("%v", f.Value)) {
			d.terms[term]++
		}
	}
	e.docs[doc.ID] = d
	return nil
}

// Delete removes a document; deleting an absent id is a no-op.
func (e *MemoryEngine) Delete(_ context.Context, docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docs, docID)
	return nil
}

// Query scores documents by matched-term count and returns them ranked by
// score descending, sequence ascending, resuming after the cursor position.
func (e *MemoryEngine) Query(ctx context.Context, expr string, after types.Cursor, limit int) ([]types.SearchHit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := tokenize(expr)
	var hits []types.SearchHit
	for id, d := range e.docs {
		score := 0.0
		for _, t := range terms {
			if n, ok := d.terms[t]; ok {
				score += float64(n)
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, types.SearchHit{
			DocID:     id,
			Score:     score,
			Partition: e.partition,
			Seq:       d.seq,
			Payload:   d.payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Seq < hits[j].Seq
	})

	if score, seq, ok := DecodeCursor(after); ok {
		cut := 0
		for cut < len(hits) {
			h := hits[cut]
			if h.Score < score || (h.Score == score && h.Seq > seq) {
				break
			}
			cut++
		}
		hits = hits[cut:]
	}

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Commit is a no-op: writes are immediately visible.
func (e *MemoryEngine) Commit(context.Context) error { return nil }

// Optimize is a no-op.
func (e *MemoryEngine) Optimize(context.Context) error { return nil }

// Reconfigure is a no-op: the in-memory engine has no tunables.
func (e *MemoryEngine) Reconfigure(context.Context, Options) error { return nil }

// Close drops all documents.
func (e *MemoryEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.docs = nil
	return nil
}

// Size returns the number of stored documents.
func (e *MemoryEngine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

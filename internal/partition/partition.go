// Package partition routes entity keys to index partitions and computes the
// minimal partition set a query has to scan. Partitioners are stateless
// routers; the token variant delegates to the host engine's own partition
// function through a late-bound Affinity context.
package partition

import (
	"github.com/gridtext/gridtext/pkg/types"
)

// Affinity is the host engine's partition function: given an opaque entity
// key, return its data partition id. The index layer never reimplements it.
type Affinity interface {
	Partition(key any) int
}

// Cursor pairs one index partition with the resume token a paged scan should
// continue from on that partition.
type Cursor struct {
	Partition int
	After     types.Cursor
}

// Partitioner maps entity keys to one of N index partitions. Implementations
// are immutable once constructed; changing the partition count requires
// dropping and recreating the index.
type Partitioner interface {
	// PartitionFor returns the partition for an entity key, in [0, Partitions).
	PartitionFor(key any) (int, error)

	// Cursors returns the partitions a query must scan, each paired with the
	// resume token. A non-empty key list prunes to the distinct partitions
	// those keys map to; an empty list selects every partition. Pruning is
	// an optimization only: the exhaustive fallback yields identical result
	// semantics.
	Cursors(keys []any, after types.Cursor) ([]Cursor, error)

	// Partitions returns the fixed partition count N.
	Partitions() int
}

// allCursors returns one cursor per partition 0..n-1, the exhaustive path.
func allCursors(n int, after types.Cursor) []Cursor {
	out := make([]Cursor, n)
	for i := range out {
		out[i] = Cursor{Partition: i, After: after}
	}
	return out
}

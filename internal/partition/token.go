package partition

import (
	"log"

	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/pkg/types"
)

// OnToken shards an index into N partitions aligned with the host engine's
// token-based data partitioning: partition = hostPartition(key) mod N.
//
// The Affinity context is late-bound: it must be attached after construction
// and before the first routing call. Routing without it is a programming
// error and fails fast rather than silently returning partition 0.
type OnToken struct {
	partitions int
	affinity   Affinity
}

// NewOnToken builds a token partitioner with a fixed partition count.
func NewOnToken(partitions int) (*OnToken, error) {
	if partitions <= 0 {
		return nil, gterrors.NewPartitionError(gterrors.CodeBadPartitionCount,
			"the number of partitions should be strictly positive but found %d", partitions)
	}
	return &OnToken{partitions: partitions}, nil
}

// Attach binds the host engine's partition function. Returns the receiver
// for chaining.
func (t *OnToken) Attach(affinity Affinity) *OnToken {
	t.affinity = affinity
	return t
}

// PartitionFor routes an entity key: the key is unwrapped from any engine
// value-boxing, handed to the host partition function, and reduced mod N.
// A negative host partition is folded back into [0, N).
func (t *OnToken) PartitionFor(key any) (int, error) {
	if t.affinity == nil {
		return 0, gterrors.NewPartitionError(gterrors.CodeContextRequired,
			"token partitioner used before affinity context was attached")
	}
	p := t.affinity.Partition(types.Unwrap(key)) % t.partitions
	if p < 0 {
		p += t.partitions
	}
	return p, nil
}

// Cursors prunes the scan set to the distinct partitions the candidate keys
// map to, or falls back to every partition when no keys are supplied. The
// resume token is propagated unchanged to each selected partition.
func (t *OnToken) Cursors(keys []any, after types.Cursor) ([]Cursor, error) {
	if len(keys) > 0 {
		parts := make(map[int]bool, len(keys))
		for _, key := range keys {
			if key == nil {
				continue
			}
			p, err := t.PartitionFor(key)
			if err != nil {
				return nil, err
			}
			parts[p] = true
		}
		if len(parts) > 0 {
			out := make([]Cursor, 0, len(parts))
			for i := 0; i < t.partitions; i++ {
				if parts[i] {
					out = append(out, Cursor{Partition: i, After: after})
				}
			}
			log.Printf("partition: pruned search from %d to %d partition(s)", t.partitions, len(out))
			return out, nil
		}
	}
	return allCursors(t.partitions, after), nil
}

// Partitions returns the fixed partition count.
func (t *OnToken) Partitions() int { return t.partitions }

package partition

import "github.com/gridtext/gridtext/pkg/types"

// None is the single-partition no-op router: every entity routes to
// partition 0 regardless of its key.
type None struct{}

// NewNone returns the single-partition router.
func NewNone() None { return None{} }

// PartitionFor always returns partition 0.
func (None) PartitionFor(key any) (int, error) { return 0, nil }

// Cursors always returns the single partition 0.
func (None) Cursors(keys []any, after types.Cursor) ([]Cursor, error) {
	return []Cursor{{Partition: 0, After: after}}, nil
}

// Partitions returns 1.
func (None) Partitions() int { return 1 }

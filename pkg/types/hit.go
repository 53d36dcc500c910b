package types

// SearchHit is one ranked result from a partition search.
type SearchHit struct {
	// DocID is the indexed document identifier (derived from the entity key).
	DocID string

	// Score is the relevance score assigned by the full-text engine.
	// Higher is better.
	Score float64

	// Partition is the index partition the hit came from.
	Partition int

	// Seq is the intra-partition insertion sequence, used as the final
	// ranking tiebreak so merged orderings are stable.
	Seq int64

	// Payload holds the stored document fields, when the engine stores them.
	Payload map[string]any
}

// Less reports whether h ranks before other in merged result order:
// score descending, then partition id ascending, then sequence ascending.
func (h SearchHit) Less(other SearchHit) bool {
	if h.Score != other.Score {
		return h.Score > other.Score
	}
	if h.Partition != other.Partition {
		return h.Partition < other.Partition
	}
	return h.Seq < other.Seq
}

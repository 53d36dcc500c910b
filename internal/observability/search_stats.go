package observability

import (
	"sort"
	"sync"
	"time"
)

// SearchStats tracks which partitions searches actually touch and how
// effective key-based pruning is. The optimizer and operators use it to spot
// skewed indexes.
type SearchStats struct {
	mu         sync.RWMutex
	partitions map[int]*PartitionStats
	window     time.Duration

	searches int64
	pruned   int64
	scanned  int64
}

// PartitionStats holds per-partition search accounting.
type PartitionStats struct {
	Partition int
	Searches  int64
	Hits      int64
	LastSeen  time.Time
}

// NewSearchStats creates a tracker. Entries idle longer than window are
// removed by Prune.
func NewSearchStats(window time.Duration) *SearchStats {
	return &SearchStats{
		partitions: make(map[int]*PartitionStats),
		window:     window,
	}
}

// RecordSearch records one fan-out: how many partitions were scanned, how
// many the pruner skipped.
func (s *SearchStats) RecordSearch(scanned, pruned int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	s.scanned += int64(scanned)
	s.pruned += int64(pruned)
}

// RecordPartition records one partition scan and the hits it produced.
func (s *SearchStats) RecordPartition(partition int, hits int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.partitions[partition]
	if !ok {
		stats = &PartitionStats{Partition: partition}
		s.partitions[partition] = stats
	}
	stats.Searches++
	stats.Hits += int64(hits)
	stats.LastSeen = time.Now()
}

// Totals returns the aggregate search, scanned and pruned counts.
func (s *SearchStats) Totals() (searches, scanned, pruned int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searches, s.scanned, s.pruned
}

// HottestPartitions returns the top N partitions by search count, copied and
// sorted descending.
func (s *SearchStats) HottestPartitions(n int) []PartitionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.partitions) == 0 {
		return []PartitionStats{}
	}

	stats := make([]PartitionStats, 0, len(s.partitions))
	for _, p := range s.partitions {
		stats = append(stats, *p)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Searches != stats[j].Searches {
			return stats[i].Searches > stats[j].Searches
		}
		return stats[i].Partition < stats[j].Partition
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes partition entries idle longer than the window.
func (s *SearchStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().Add(-s.window)
	for id, stats := range s.partitions {
		if stats.LastSeen.Before(threshold) {
			delete(s.partitions, id)
		}
	}
}

package index

import (
	"github.com/gridtext/gridtext/pkg/types"
)

// mergeHits performs a k-way merge over per-partition hit slices that are
// each already sorted by score descending, sequence ascending. The merged
// ordering is score descending, partition id ascending, sequence ascending,
// truncated at limit. O(N log K) for K streams.
func mergeHits(streams [][]types.SearchHit, limit int) []types.SearchHit {
	switch len(streams) {
	case 0:
		return nil
	case 1:
		hits := streams[0]
		if limit > 0 && len(hits) > limit {
			hits = hits[:limit]
		}
		return hits
	}

	// heap of (stream, position) ordered by the head hit's rank
	type head struct {
		stream int
		pos    int
	}
	heap := make([]head, 0, len(streams))
	less := func(a, b head) bool {
		return streams[a.stream][a.pos].Less(streams[b.stream][b.pos])
	}
	heapifyDown := func(i int) {
		for {
			best := i
			if l := 2*i + 1; l < len(heap) && less(heap[l], heap[best]) {
				best = l
			}
			if r := 2*i + 2; r < len(heap) && less(heap[r], heap[best]) {
				best = r
			}
			if best == i {
				return
			}
			heap[i], heap[best] = heap[best], heap[i]
			i = best
		}
	}

	total := 0
	for s, hits := range streams {
		total += len(hits)
		if len(hits) > 0 {
			heap = append(heap, head{stream: s})
		}
	}
	for i := len(heap)/2 - 1; i >= 0; i-- {
		heapifyDown(i)
	}

	if limit > 0 && limit < total {
		total = limit
	}
	out := make([]types.SearchHit, 0, total)
	for len(heap) > 0 && len(out) < total {
		top := heap[0]
		out = append(out, streams[top.stream][top.pos])

		if top.pos+1 < len(streams[top.stream]) {
			heap[0].pos++
		} else {
			heap[0] = heap[len(heap)-1]
			heap = heap[:len(heap)-1]
		}
		if len(heap) > 0 {
			heapifyDown(0)
		}
	}
	return out
}

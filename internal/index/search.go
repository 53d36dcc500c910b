package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gridtext/gridtext/internal/engine"
	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/internal/partition"
	"github.com/gridtext/gridtext/pkg/types"
)

// Query is one search request against the index.
type Query struct {
	// Expression is the full-text query handed verbatim to each partition
	// engine.
	Expression string

	// Keys optionally prunes the scan to the partitions these entity keys
	// map to. Empty means scan every partition.
	Keys []any

	// After is the resume token of a previous page; zero starts from the top.
	After types.Cursor

	// Limit caps the merged result size. Non-positive means no cap.
	Limit int

	// BestEffort makes partition failures non-fatal: available partitions
	// are merged and the failed partition ids reported on the result.
	BestEffort bool
}

// Result is the merged outcome of a fan-out search.
type Result struct {
	// Hits are ranked by score descending, then partition id, then
	// intra-partition sequence.
	Hits []types.SearchHit

	// Scanned and Pruned count the partitions the fan-out touched and
	// skipped.
	Scanned int
	Pruned  int

	// Failed lists the partitions that errored, only populated in
	// best-effort mode.
	Failed []int
}

// partitionResult carries one partition's hits or failure through the join
// barrier.
type partitionResult struct {
	partition int
	hits      []types.SearchHit
	err       error
}

// Search fans the query out to the relevant partitions in parallel, waits
// for all of them, and k-way merges the per-partition rankings into one.
// A context deadline is shared by every partition scan; exceeding it fails
// the whole operation with a search timeout. Any partition failure fails the
// operation unless the query opts into best effort.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	gen, err := i.liveGeneration()
	if err != nil {
		return nil, err
	}
	started := time.Now()

	cursors, err := gen.partitioner.Cursors(q.Keys, q.After)
	if err != nil {
		return nil, err
	}
	pruned := gen.partitioner.Partitions() - len(cursors)

	results := make([]partitionResult, len(cursors))
	sem := semaphore.NewWeighted(i.concurrency)
	var wg sync.WaitGroup

	for idx, cur := range cursors {
		wg.Add(1)
		go func(idx int, cur partition.Cursor) {
			defer wg.Done()
			results[idx] = i.scanPartition(ctx, sem, q, cur)
		}(idx, cur)
	}
	wg.Wait()

	if i.stats != nil {
		i.stats.RecordSearch(len(cursors), pruned)
	}
	if i.metrics != nil {
		i.metrics.PartitionsScanned.WithLabelValues(i.name).Add(float64(len(cursors)))
		i.metrics.PartitionsPruned.WithLabelValues(i.name).Add(float64(pruned))
		i.metrics.SearchLatency.WithLabelValues(i.name).Observe(time.Since(started).Seconds())
	}

	res := &Result{Scanned: len(cursors), Pruned: pruned}
	var streams [][]types.SearchHit
	var firstErr error
	for _, pr := range results {
		if pr.err != nil {
			if timedOut(ctx, pr.err) {
				i.countSearch("timeout")
				return nil, gterrors.NewSearchError(gterrors.CodeSearchTimeout,
					"index %q: search timed out on partition %d", i.name, pr.partition)
			}
			if firstErr == nil {
				firstErr = pr.err
			}
			res.Failed = append(res.Failed, pr.partition)
			continue
		}
		if i.stats != nil {
			i.stats.RecordPartition(pr.partition, len(pr.hits))
		}
		streams = append(streams, pr.hits)
	}

	if firstErr != nil && !q.BestEffort {
		i.countSearch("error")
		return nil, firstErr
	}
	if firstErr != nil && len(streams) == 0 {
		// Best effort with nothing left to merge is still a failure.
		i.countSearch("error")
		return nil, gterrors.Wrap(gterrors.ErrCategorySearch, gterrors.CodePartialFailure,
			fmt.Sprintf("index %q: every scanned partition failed", i.name), firstErr)
	}

	res.Hits = mergeHits(streams, q.Limit)
	if len(res.Failed) > 0 {
		sort.Ints(res.Failed)
		log.Printf("index: %s: best-effort search served from %d of %d partition(s)",
			i.name, len(streams), len(cursors))
		i.countSearch("partial")
	} else {
		i.countSearch("ok")
	}
	return res, nil
}

// scanPartition runs the query on one partition under the fan-out semaphore.
func (i *Index) scanPartition(ctx context.Context, sem *semaphore.Weighted, q Query, cur partition.Cursor) partitionResult {
	pr := partitionResult{partition: cur.Partition}

	if err := sem.Acquire(ctx, 1); err != nil {
		pr.err = err
		return pr
	}
	defer sem.Release(1)

	eng, ok := i.engines.Load(cur.Partition)
	if !ok {
		pr.err = gterrors.Newf(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
			"index %q: no engine for partition %d", i.name, cur.Partition)
		return pr
	}

	hits, err := eng.Query(ctx, q.Expression, cur.After, q.Limit)
	if err != nil {
		pr.err = gterrors.Wrap(gterrors.ErrCategorySearch, gterrors.CodeEngineFailure,
			fmt.Sprintf("index %q: partition %d query failed", i.name, cur.Partition), err)
		return pr
	}
	pr.hits = hits
	return pr
}

func (i *Index) countSearch(result string) {
	if i.metrics != nil {
		i.metrics.Searches.WithLabelValues(i.name, result).Inc()
	}
}

// timedOut reports whether the failure is the shared deadline expiring
// rather than a genuine partition error.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}

// NextCursor renders the resume token for the page that follows the given
// hits, or a zero cursor when the page is empty.
func NextCursor(hits []types.SearchHit) types.Cursor {
	if len(hits) == 0 {
		return nil
	}
	last := hits[len(hits)-1]
	return engine.EncodeCursor(last.Score, last.Seq)
}

// Package index is the runtime adapter binding a compiled schema, a
// versioned configuration and a partitioner to live full-text engine
// partitions. It owns the index lifecycle, write routing, fan-out search and
// the background optimizer.
package index

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gridtext/gridtext/internal/engine"
	gterrors "github.com/gridtext/gridtext/internal/errors"
	"github.com/gridtext/gridtext/internal/observability"
	"github.com/gridtext/gridtext/internal/options"
	"github.com/gridtext/gridtext/internal/partition"
	"github.com/gridtext/gridtext/pkg/types"
)

// State is the index lifecycle phase.
type State int

const (
	// Uninitialized means no configuration has been applied yet.
	Uninitialized State = iota

	// Building means partition engines are being constructed. Callers block
	// until the build settles instead of double-constructing.
	Building

	// Live means the index accepts writes and searches.
	Live

	// Dropped is terminal: every operation except Drop fails.
	Dropped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	case Live:
		return "live"
	case Dropped:
		return "dropped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// generation is one immutable configuration generation: the parsed options
// plus the partitioner built from them. A hot swap replaces the whole
// pointer; in-flight operations keep the snapshot they loaded.
type generation struct {
	opts        *options.IndexOptions
	partitioner partition.Partitioner
}

// Config holds the collaborators an index runtime needs.
type Config struct {
	// Name identifies the index in logs, metrics and error messages.
	Name string

	// Directory is the base directory partition files live under when the
	// configuration declares no directory_path.
	Directory string

	// Opener constructs the engine for each partition.
	Opener engine.Opener

	// Affinity is the host engine's partition function, attached to token
	// partitioners.
	Affinity partition.Affinity

	// Concurrency bounds the search fan-out (default: 8).
	Concurrency int

	// Metrics receives the index counters; nil disables them.
	Metrics *observability.Metrics

	// Stats receives per-partition search accounting; nil disables it.
	Stats *observability.SearchStats
}

// Index is the runtime adapter for one full-text index.
type Index struct {
	name        string
	directory   string
	opener      engine.Opener
	affinity    partition.Affinity
	concurrency int64
	metrics     *observability.Metrics
	stats       *observability.SearchStats

	mu    sync.Mutex
	cond  *sync.Cond
	state State

	gen     atomic.Pointer[generation]
	engines *xsync.MapOf[int, engine.Engine]

	optMu     sync.Mutex
	optimizer *optimizer
}

// New creates an uninitialized index. The first CreateOrUpdate builds it.
func New(cfg Config) (*Index, error) {
	if cfg.Name == "" {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption, "index name is required")
	}
	if cfg.Opener == nil {
		return nil, gterrors.NewConfigError(gterrors.CodeBadOption, "index %q: engine opener is required", cfg.Name)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	i := &Index{
		name:        cfg.Name,
		directory:   cfg.Directory,
		opener:      cfg.Opener,
		affinity:    cfg.Affinity,
		concurrency: int64(cfg.Concurrency),
		metrics:     cfg.Metrics,
		stats:       cfg.Stats,
		state:       Uninitialized,
		engines:     xsync.NewMapOf[int, engine.Engine](),
	}
	i.cond = sync.NewCond(&i.mu)
	return i, nil
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// State returns the current lifecycle phase.
func (i *Index) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Options returns the live configuration generation, or nil before the first
// build.
func (i *Index) Options() *options.IndexOptions {
	if g := i.gen.Load(); g != nil {
		return g.opts
	}
	return nil
}

// CreateOrUpdate applies a configuration payload. On an uninitialized index
// it builds the partition engines. On a live index it applies the payload in
// place when the hot-swap protocol allows it, ignores it when nothing
// operational changed, and otherwise fails requiring a rebuild; force always
// replaces the index wholesale.
func (i *Index) CreateOrUpdate(ctx context.Context, payload string, force bool) error {
	opts, err := options.Parse(payload)
	if err != nil {
		return err
	}
	if opts.OptimizerEnabled {
		// The options parser treats the schedule as an opaque string; reject a
		// bad cron expression here, before any state changes.
		if _, err := ParseSchedule(opts.OptimizerSchedule); err != nil {
			return err
		}
	}

	i.mu.Lock()
	for i.state == Building {
		i.cond.Wait()
	}
	switch i.state {
	case Dropped:
		i.mu.Unlock()
		return gterrors.NewSearchError(gterrors.CodeIndexDropped, "index %q has been dropped", i.name)

	case Uninitialized:
		i.state = Building
		i.mu.Unlock()
		return i.finishBuild(ctx, opts)

	case Live:
		if force {
			i.state = Building
			i.mu.Unlock()
			i.teardown()
			log.Printf("index: %s: forced rebuild to configuration version %d", i.name, opts.Version)
			return i.finishBuild(ctx, opts)
		}
		// The lock stays held through validation and the generation swap so
		// concurrent updates serialize: each proposal is judged against the
		// generation that is actually live when it commits, and the live
		// version never moves backward.
		err := i.applyUpdate(ctx, i.gen.Load().opts, opts)
		i.mu.Unlock()
		return err
	}
	i.mu.Unlock()
	return gterrors.Newf(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
		"index %q in unexpected state", i.name)
}

// applyUpdate resolves a configuration proposal against the live generation.
// The caller holds the state lock.
func (i *Index) applyUpdate(ctx context.Context, current, proposed *options.IndexOptions) error {
	if structuralChange(current, proposed) {
		if i.metrics != nil {
			i.metrics.RebuildRejections.WithLabelValues(i.name).Inc()
		}
		return gterrors.NewConfigError(gterrors.CodeRebuildRequired,
			"index %q: schema, partitioner or directory changed; rebuild required", i.name)
	}
	if proposed.Version < current.Version {
		if i.metrics != nil {
			i.metrics.RebuildRejections.WithLabelValues(i.name).Inc()
		}
		return gterrors.NewConfigError(gterrors.CodeBadOption,
			"index %q: configuration version %d is older than the live version %d",
			i.name, proposed.Version, current.Version)
	}
	if !options.AllowedUpdate(current, proposed) {
		// Same-or-newer version with no operational delta: nothing to do.
		log.Printf("index: %s: configuration version %d carries no operational change", i.name, proposed.Version)
		return nil
	}
	return i.hotSwap(ctx, proposed)
}

// structuralChange reports whether the proposal touches anything outside the
// hot-swappable operational knobs.
func structuralChange(current, proposed *options.IndexOptions) bool {
	if current.SchemaJSON != proposed.SchemaJSON {
		return true
	}
	if !current.Partitioner.Equal(proposed.Partitioner) {
		return true
	}
	return current.DirectoryPath != proposed.DirectoryPath
}

// hotSwap replaces the live generation in place: new options pointer, engine
// reconfiguration, optimizer restart. Readers that loaded the previous
// generation finish on it. The caller holds the state lock, so swaps never
// interleave.
func (i *Index) hotSwap(ctx context.Context, opts *options.IndexOptions) error {
	p, err := opts.BuildPartitioner(i.affinity)
	if err != nil {
		return err
	}
	i.gen.Store(&generation{opts: opts, partitioner: p})

	eopts := engineOptions(opts)
	i.engines.Range(func(id int, eng engine.Engine) bool {
		if err := eng.Reconfigure(ctx, eopts); err != nil {
			log.Printf("index: %s: failed to reconfigure partition %d: %v", i.name, id, err)
		}
		return true
	})

	i.restartOptimizer(opts)
	if i.metrics != nil {
		i.metrics.HotSwaps.WithLabelValues(i.name).Inc()
	}
	log.Printf("index: %s: hot-swapped configuration to version %d", i.name, opts.Version)
	return nil
}

// finishBuild constructs every partition engine for the given options. The
// caller has already moved the state to Building; this settles it to Live or
// back to Uninitialized.
func (i *Index) finishBuild(ctx context.Context, opts *options.IndexOptions) error {
	err := i.build(ctx, opts)

	i.mu.Lock()
	if err != nil {
		i.state = Uninitialized
	} else {
		i.state = Live
	}
	i.cond.Broadcast()
	i.mu.Unlock()
	return err
}

func (i *Index) build(ctx context.Context, opts *options.IndexOptions) error {
	p, err := opts.BuildPartitioner(i.affinity)
	if err != nil {
		return err
	}

	directory := opts.DirectoryPath
	if directory == "" {
		directory = filepath.Join(i.directory, i.name)
	}

	eopts := engineOptions(opts)
	for id := 0; id < p.Partitions(); id++ {
		if err := ctx.Err(); err != nil {
			i.teardown()
			return gterrors.Wrap(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
				fmt.Sprintf("index %q build interrupted", i.name), err)
		}
		eng, err := i.opener(directory, id, eopts)
		if err != nil {
			i.teardown()
			return gterrors.Wrap(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
				fmt.Sprintf("index %q: failed to open partition %d", i.name, id), err)
		}
		i.engines.Store(id, eng)
	}

	i.gen.Store(&generation{opts: opts, partitioner: p})
	if i.metrics != nil {
		i.metrics.PartitionsLive.WithLabelValues(i.name).Set(float64(p.Partitions()))
	}
	i.restartOptimizer(opts)
	log.Printf("index: %s: built %d partition(s) at configuration version %d",
		i.name, p.Partitions(), opts.Version)
	return nil
}

// teardown closes and forgets every partition engine.
func (i *Index) teardown() {
	i.stopOptimizer()
	i.engines.Range(func(id int, eng engine.Engine) bool {
		if err := eng.Close(); err != nil {
			log.Printf("index: %s: failed to close partition %d: %v", i.name, id, err)
		}
		i.engines.Delete(id)
		return true
	})
	if i.metrics != nil {
		i.metrics.PartitionsLive.WithLabelValues(i.name).Set(0)
	}
}

// liveGeneration waits out an in-flight build and returns the generation
// snapshot the operation should run against.
func (i *Index) liveGeneration() (*generation, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for i.state == Building {
		i.cond.Wait()
	}
	switch i.state {
	case Live:
		return i.gen.Load(), nil
	case Dropped:
		return nil, gterrors.NewSearchError(gterrors.CodeIndexDropped, "index %q has been dropped", i.name)
	}
	return nil, gterrors.Newf(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
		"index %q used before initialization", i.name)
}

// Upsert maps a row through the schema and writes the resulting document to
// the key's partition. A mapping failure on a validated mapper aborts the
// whole write; on an unvalidated mapper the field is logged and skipped.
func (i *Index) Upsert(ctx context.Context, key any, row types.Row) error {
	gen, err := i.liveGeneration()
	if err != nil {
		return err
	}

	part, err := gen.partitioner.PartitionFor(key)
	if err != nil {
		return err
	}
	eng, ok := i.engines.Load(part)
	if !ok {
		return gterrors.Newf(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
			"index %q: no engine for partition %d", i.name, part)
	}

	doc := engine.Document{ID: DocID(key)}
	for _, m := range gen.opts.Schema.Mappers() {
		fields, err := m.Map(row)
		if err != nil {
			if m.Validated {
				if i.metrics != nil {
					i.metrics.MappingFailures.WithLabelValues(i.name, "aborted").Inc()
				}
				return err
			}
			if i.metrics != nil {
				i.metrics.MappingFailures.WithLabelValues(i.name, "skipped").Inc()
			}
			log.Printf("index: %s: skipping field %q for key %v: %v", i.name, m.Name, key, err)
			continue
		}
		doc.Fields = append(doc.Fields, fields...)
	}

	if err := eng.Upsert(ctx, doc); err != nil {
		return gterrors.Wrap(gterrors.ErrCategorySearch, gterrors.CodeEngineFailure,
			fmt.Sprintf("index %q: write to partition %d failed", i.name, part), err)
	}
	if i.metrics != nil {
		i.metrics.Upserts.WithLabelValues(i.name).Inc()
	}
	return nil
}

// Delete removes the document indexed under the key. Deleting an absent key
// is a no-op.
func (i *Index) Delete(ctx context.Context, key any) error {
	gen, err := i.liveGeneration()
	if err != nil {
		return err
	}
	part, err := gen.partitioner.PartitionFor(key)
	if err != nil {
		return err
	}
	eng, ok := i.engines.Load(part)
	if !ok {
		return gterrors.Newf(gterrors.ErrCategoryInternal, gterrors.CodeUnexpected,
			"index %q: no engine for partition %d", i.name, part)
	}
	if err := eng.Delete(ctx, DocID(key)); err != nil {
		return gterrors.Wrap(gterrors.ErrCategorySearch, gterrors.CodeEngineFailure,
			fmt.Sprintf("index %q: delete on partition %d failed", i.name, part), err)
	}
	if i.metrics != nil {
		i.metrics.Deletes.WithLabelValues(i.name).Inc()
	}
	return nil
}

// Commit flushes every partition engine.
func (i *Index) Commit(ctx context.Context) error {
	if _, err := i.liveGeneration(); err != nil {
		return err
	}
	var firstErr error
	i.engines.Range(func(id int, eng engine.Engine) bool {
		if err := eng.Commit(ctx); err != nil && firstErr == nil {
			firstErr = gterrors.Wrap(gterrors.ErrCategorySearch, gterrors.CodeEngineFailure,
				fmt.Sprintf("index %q: commit on partition %d failed", i.name, id), err)
		}
		return true
	})
	return firstErr
}

// Drop releases every partition handle and makes the index permanently
// unusable. Dropping twice is a no-op.
func (i *Index) Drop(context.Context) error {
	i.mu.Lock()
	for i.state == Building {
		i.cond.Wait()
	}
	if i.state == Dropped {
		i.mu.Unlock()
		return nil
	}
	i.state = Dropped
	i.cond.Broadcast()
	i.mu.Unlock()

	i.teardown()
	log.Printf("index: %s: dropped", i.name)
	return nil
}

// DocID derives the stable document identifier from an entity key,
// unwrapping any engine value-boxing first.
func DocID(key any) string {
	return fmt.Sprintf("%v", types.Unwrap(key))
}

func engineOptions(opts *options.IndexOptions) engine.Options {
	return engine.Options{
		RAMBufferMB:    opts.RAMBufferMB,
		MaxCachedMB:    opts.MaxCachedMB,
		RefreshSeconds: opts.RefreshSeconds,
	}
}

package index

import (
	"context"
	"log"
	"time"

	"github.com/gridtext/gridtext/internal/engine"
	"github.com/gridtext/gridtext/internal/options"
)

// optimizer runs the per-partition optimize pass on a cron schedule. One
// optimizer exists per live generation; a hot swap replaces it.
type optimizer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// restartOptimizer stops any running optimizer and, when the configuration
// enables it, starts a new loop on the configured schedule.
func (i *Index) restartOptimizer(opts *options.IndexOptions) {
	i.optMu.Lock()
	defer i.optMu.Unlock()
	i.stopRunningOptimizer()
	if !opts.OptimizerEnabled {
		return
	}
	schedule, err := ParseSchedule(opts.OptimizerSchedule)
	if err != nil {
		// CreateOrUpdate validates the schedule; a failure here means a
		// hand-built IndexOptions slipped through. Run without the optimizer.
		log.Printf("index: %s: optimizer disabled: %v", i.name, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &optimizer{cancel: cancel, done: make(chan struct{})}
	i.optimizer = o
	go i.optimizeLoop(ctx, schedule, o.done)
}

func (i *Index) stopOptimizer() {
	i.optMu.Lock()
	defer i.optMu.Unlock()
	i.stopRunningOptimizer()
}

// stopRunningOptimizer must be called with optMu held.
func (i *Index) stopRunningOptimizer() {
	if i.optimizer == nil {
		return
	}
	i.optimizer.cancel()
	<-i.optimizer.done
	i.optimizer = nil
}

// optimizeLoop sleeps until each scheduled slot and optimizes every
// partition. It runs until the index is dropped or reconfigured.
func (i *Index) optimizeLoop(ctx context.Context, schedule *Schedule, done chan struct{}) {
	defer close(done)
	for {
		next := schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := time.Now()
		failed := 0
		i.engines.Range(func(id int, eng engine.Engine) bool {
			if err := eng.Optimize(ctx); err != nil {
				failed++
				log.Printf("index: %s: optimize failed on partition %d: %v", i.name, id, err)
			}
			return true
		})

		result := "ok"
		if failed > 0 {
			result = "error"
		}
		if i.metrics != nil {
			i.metrics.OptimizerRuns.WithLabelValues(i.name, result).Inc()
		}
		log.Printf("index: %s: optimizer pass finished in %s (%d failure(s))",
			i.name, time.Since(start).Round(time.Millisecond), failed)
	}
}

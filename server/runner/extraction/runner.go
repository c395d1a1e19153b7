// Package extraction runs the periodic decay+extraction cycle.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/CaptainCrouton89/iagent/plugin/ai/memory"
)

type Runner struct {
	extractor *memory.Extractor
	interval  time.Duration
}

// NewRunner creates an extraction runner.
func NewRunner(extractor *memory.Extractor, interval time.Duration) *Runner {
	return &Runner{
		extractor: extractor,
		interval:  interval,
	}
}

// Run starts the background loop. One cycle runs immediately on start,
// then on every tick until the context is done. The extractor's own
// overlap guard also covers cycles triggered over HTTP.
func (r *Runner) Run(ctx context.Context) {
	r.runOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("extraction runner stopped")
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	result, err := r.extractor.RunExtractionCycle(ctx)
	if err != nil {
		if !errors.Is(err, memory.ErrCycleRunning) {
			slog.Error("extraction cycle failed", "error", err)
		}
		return
	}

	failed := 0
	for _, creator := range result.Creators {
		if creator.Err != nil {
			failed++
		}
	}
	slog.Info("scheduled extraction cycle done",
		"creators", len(result.Creators),
		"failed", failed,
		"decay_scanned", result.Decay.Scanned,
		"decay_deleted", result.Decay.Deleted)
}

package scenario

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default number of concurrent replays.
const DefaultConcurrency = 4

// BatchRunner replays several scenarios concurrently. Each replay gets
// a Runner from the factory, and with it fresh storage.
type BatchRunner struct {
	runnerFactory func() *Runner
	concurrency   int
	logger        *slog.Logger
	mu            sync.Mutex
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets the batch logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent replays.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a BatchRunner.
func NewBatchRunner(runnerFactory func() *Runner, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		runnerFactory: runnerFactory,
		concurrency:   DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run replays scenarios and returns results in input order. A failed
// replay is recorded in its Result and does not stop the others; the
// returned error is only set on cancellation.
func (b *BatchRunner) Run(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	b.logger.Info("starting batch replay",
		"total_scenarios", len(scenarios),
		"concurrency", b.concurrency,
	)
	started := time.Now()

	results := make([]*Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, sc := range scenarios {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result, err := b.runnerFactory().Run(ctx, sc)

			b.mu.Lock()
			results[i] = result
			b.mu.Unlock()

			if err != nil {
				b.logger.Warn("replay failed", "scenario", sc.Name, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	b.logger.Info("batch replay complete",
		"total_scenarios", len(scenarios),
		"elapsed", time.Since(started),
	)
	return results, err
}

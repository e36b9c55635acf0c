package ingest

import (
	"context"
	"log/slog"
	"time"
)

// Runner runs one ingestion batch. *Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Poller runs ingestion batches on a fixed interval until its context
// is cancelled. Batches are strictly sequential; a slow batch delays
// the next tick rather than overlapping it.
type Poller struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller running batches every interval.
func NewPoller(r Runner, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{runner: r, interval: interval, logger: logger}
}

// Start blocks, running one batch immediately and then one per tick,
// until ctx is cancelled. Batch errors are logged and the loop keeps
// going: a transient mailbox failure retries from the same watermark
// on the next tick.
func (p *Poller) Start(ctx context.Context) {
	p.runBatch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runBatch(ctx)
		}
	}
}

func (p *Poller) runBatch(ctx context.Context) {
	report, err := p.runner.Run(ctx)
	if err != nil {
		p.logger.Error("ingestion batch failed", "error", err)
		return
	}

	p.logger.Info("ingestion batch finished",
		"cursor", report.EndCursor,
		"created", report.Count(OutcomeCreated),
		"updated", report.Count(OutcomeUpdated),
		"skipped", report.Count(OutcomeSkipped),
		"failed", report.Count(OutcomeFailed),
	)
}

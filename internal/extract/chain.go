package extract

import (
	"context"
	"log/slog"
)

// Chain composes the probabilistic and heuristic strategies in a fixed
// order: try primary, fall back on error. Because the heuristic never
// fails, a Chain with a Heuristic fallback never surfaces an
// extraction error to the pipeline.
type Chain struct {
	primary  Extractor
	fallback Extractor
	logger   *slog.Logger
}

// NewChain builds a chain over primary and fallback. A nil primary
// (no completion backend configured) degrades to fallback-only.
func NewChain(primary, fallback Extractor, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}
}

// ClassifyStatus tries the primary strategy and falls back to the
// heuristic when it fails.
func (c *Chain) ClassifyStatus(ctx context.Context, subject, body string) (Classification, error) {
	if c.primary != nil {
		cls, err := c.primary.ClassifyStatus(ctx, subject, body)
		if err == nil {
			return cls, nil
		}
		c.logger.Warn("primary classification failed, using heuristic", "error", err)
	}
	return c.fallback.ClassifyStatus(ctx, subject, body)
}

// ExtractTask tries the primary strategy and falls back to the
// heuristic defaults when it fails.
func (c *Chain) ExtractTask(ctx context.Context, subject, body string) (TaskFields, error) {
	if c.primary != nil {
		fields, err := c.primary.ExtractTask(ctx, subject, body)
		if err == nil {
			return fields, nil
		}
		c.logger.Warn("primary extraction failed, using defaults", "error", err)
	}
	return c.fallback.ExtractTask(ctx, subject, body)
}

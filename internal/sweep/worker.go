// Package sweep runs the recurring store hygiene pass: purge expired
// entries, then apply priority decay. Both operations are safe to
// re-run, so the worker needs no coordination beyond its ticker.
package sweep

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/pkg/types"
)

// Maintainer is the slice of the memory service the worker needs.
type Maintainer interface {
	CleanupExpired(ctx context.Context) (int, error)
	ApplyDecay(ctx context.Context, opts types.DecayOptions) (types.DecayResult, error)
}

// Start launches the periodic sweep loop and blocks until ctx is done.
func Start(ctx context.Context, logger *log.Logger, interval time.Duration, opts types.DecayOptions, m Maintainer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := m.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("expired cleanup failed", "error", err)
			} else if purged > 0 {
				logger.Info("sweep purged expired entries", "count", purged)
			}

			result, err := m.ApplyDecay(ctx, opts)
			if err != nil {
				logger.Warn("decay sweep failed", "error", err)
				continue
			}
			if result.Decayed > 0 || result.Archived > 0 {
				logger.Info("sweep applied decay", "decayed", result.Decayed, "archived", result.Archived)
			}
		}
	}
}

package memory

import (
	"context"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

// archiveGrace is how far in the future the archival expiry flag is set.
const archiveGrace = 30 * 24 * time.Hour

// ApplyDecay runs one decay sweep: entries inactive past the archive
// window get an expiry flag instead of immediate deletion; entries
// inactive past the decay window are demoted one priority step.
// Critical entries are untouched while ProtectCritical is set. The
// sweep is a no-op for entries that already carry an expiry flag or
// have reached low, so re-running it is safe.
func (s *Service) ApplyDecay(ctx context.Context, opts types.DecayOptions) (types.DecayResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.DecayResult{}, err
	}

	result := decayDocument(&doc, opts, time.Now().UTC())
	if result.Decayed > 0 || result.Archived > 0 {
		if err := s.store.Save(ctx, doc); err != nil {
			return types.DecayResult{}, err
		}
	}

	s.logger.Info("decay sweep finished",
		"decayed", result.Decayed, "archived", result.Archived, "unchanged", result.Unchanged)
	return result, nil
}

// decayDocument mutates doc in place and reports counts. The archive
// and demotion branches are deliberately exclusive per pass: an entry
// crossing the archive threshold only gets the expiry flag that run.
func decayDocument(doc *types.MemoryDocument, opts types.DecayOptions, now time.Time) types.DecayResult {
	if opts.DaysUntilDecay <= 0 {
		opts.DaysUntilDecay = 30
	}
	if opts.DaysUntilArchive <= 0 {
		opts.DaysUntilArchive = 90
	}

	var result types.DecayResult
	for i := range doc.Entries {
		e := &doc.Entries[i]

		if opts.ProtectCritical && e.Priority == types.PriorityCritical {
			result.Unchanged++
			continue
		}
		if e.ExpiresAt != nil {
			// Already flagged for archival (or carries a caller-set
			// expiry); further automatic decay is a no-op.
			result.Unchanged++
			continue
		}

		ref := e.UpdatedAt
		if e.LastUsedAt != nil {
			ref = *e.LastUsedAt
		}
		inactiveDays := now.Sub(ref).Hours() / 24.0

		switch {
		case inactiveDays > float64(opts.DaysUntilArchive):
			t := now.Add(archiveGrace)
			e.ExpiresAt = &t
			result.Archived++
		case e.Priority == types.PriorityCritical && inactiveDays > float64(opts.DaysUntilDecay):
			// Only reachable when critical protection is off.
			e.Priority = types.PriorityHigh
			result.Decayed++
		case e.Priority == types.PriorityHigh && inactiveDays > float64(opts.DaysUntilDecay):
			e.Priority = types.PriorityMedium
			result.Decayed++
		case e.Priority == types.PriorityMedium && inactiveDays > float64(2*opts.DaysUntilDecay):
			e.Priority = types.PriorityLow
			result.Decayed++
		default:
			result.Unchanged++
		}
	}
	return result
}

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

// Health report thresholds.
const (
	healthExpiredWarn     = 10
	healthLowQualityRatio = 0.3
	healthClusterWarnSize = 3
	healthSizeWarn        = 1000
	healthSizeCritical    = 5000
)

// CleanupExpired removes entries whose expiry has passed. Critical
// entries never receive an automatic expiry, so anything removed here
// either aged out of the archive flag or was explicitly expired by a
// caller.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	removed := removeExpired(&doc, time.Now().UTC())
	if removed == 0 {
		return 0, nil
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return 0, err
	}
	s.logger.Info("expired entries purged", "count", removed)
	return removed, nil
}

func removeExpired(doc *types.MemoryDocument, now time.Time) int {
	kept := doc.Entries[:0]
	removed := 0
	for _, e := range doc.Entries {
		if e.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	doc.Entries = kept
	return removed
}

// RunFullMaintenance runs the whole cycle in order: expired cleanup,
// decay, low-quality cleanup, consolidation. With DryRun set, every
// step is simulated against an in-memory copy and nothing is persisted.
// Consolidation executes only when AutoConsolidate is set and the run
// is not a dry run; otherwise clusters are only reported.
func (s *Service) RunFullMaintenance(ctx context.Context, opts types.MaintenanceOptions) (types.MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.MaintenanceReport{}, err
	}

	now := time.Now().UTC()
	report := types.MaintenanceReport{DryRun: opts.DryRun}
	logAction := func(step, detail string, count int) {
		report.Actions = append(report.Actions, types.MaintenanceAction{Step: step, Detail: detail, Count: count})
	}

	report.ExpiredRemoved = removeExpired(&doc, now)
	logAction("expired_cleanup", "removed entries past their expiry", report.ExpiredRemoved)

	report.Decay = decayDocument(&doc, types.DefaultDecayOptions(), now)
	logAction("decay", fmt.Sprintf("demoted %d, flagged %d for archival", report.Decay.Decayed, report.Decay.Archived),
		report.Decay.Decayed+report.Decay.Archived)

	report.LowQualityRemoved = removeLowQuality(&doc, now)
	logAction("low_quality_cleanup", "removed entries scored for deletion", report.LowQualityRemoved)

	clusters := findClusters(doc.Entries, ConsolidationOptions{
		MinSimilarity: s.cfg.MinSimilarity,
		SameTypeOnly:  true,
		SameBrandOnly: true,
	}, now)
	report.ClustersFound = len(clusters)
	if opts.AutoConsolidate && !opts.DryRun {
		merged, removed := consolidateDocument(&doc, clusters, now)
		report.ClustersMerged = merged
		logAction("consolidation", fmt.Sprintf("merged %d clusters, removed %d duplicates", merged, removed), merged)
	} else {
		logAction("consolidation", "clusters reported only", len(clusters))
	}

	if !opts.DryRun {
		if err := s.store.Save(ctx, doc); err != nil {
			return report, err
		}
	}

	s.logger.Info("maintenance cycle finished",
		"dry_run", opts.DryRun,
		"expired", report.ExpiredRemoved,
		"decayed", report.Decay.Decayed,
		"low_quality", report.LowQualityRemoved,
		"clusters", report.ClustersFound)
	return report, nil
}

// removeLowQuality drops entries whose quality recommendation is
// delete. Critical entries are exempt regardless of score.
func removeLowQuality(doc *types.MemoryDocument, now time.Time) int {
	kept := doc.Entries[:0]
	removed := 0
	for _, e := range doc.Entries {
		if e.Priority != types.PriorityCritical {
			q := computeQuality(e, feedbackFor(*doc, e.ID), now)
			if q.Recommendation == types.RecommendDelete {
				removed++
				continue
			}
		}
		kept = append(kept, e)
	}
	doc.Entries = kept
	return removed
}

// HealthReport grades the store from expiry backlog, low-quality
// proportion, duplicate clusters and absolute size. Reads do not
// perturb usage statistics.
func (s *Service) HealthReport(ctx context.Context) (types.HealthReport, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.HealthReport{}, err
	}

	now := time.Now().UTC()
	report := types.HealthReport{
		Status: types.HealthHealthy,
		Total:  len(doc.Entries),
	}
	raise := func(sev types.HealthStatus, issue, suggestion string) {
		report.Issues = append(report.Issues, types.HealthIssue{Severity: sev, Issue: issue, Suggestion: suggestion})
		if sev == types.HealthCritical || (sev == types.HealthWarning && report.Status == types.HealthHealthy) {
			report.Status = sev
		}
	}

	for _, e := range doc.Entries {
		if e.Expired(now) {
			report.Expired++
		}
		if e.Priority != types.PriorityCritical {
			if q := computeQuality(e, feedbackFor(doc, e.ID), now); q.Overall < 0.4 {
				report.LowQuality++
			}
		}
	}

	clusters := findClusters(doc.Entries, ConsolidationOptions{
		MinSimilarity: s.cfg.MinSimilarity,
		SameTypeOnly:  true,
		SameBrandOnly: true,
	}, now)
	largest := 0
	for _, c := range clusters {
		report.Duplicates += len(c.Entries) - 1
		if len(c.Entries) > largest {
			largest = len(c.Entries)
		}
	}

	if report.Expired > healthExpiredWarn {
		raise(types.HealthWarning,
			fmt.Sprintf("%d expired entries awaiting cleanup", report.Expired),
			"run CleanupExpired or a full maintenance cycle")
	}
	if report.Total > 0 && float64(report.LowQuality)/float64(report.Total) > healthLowQualityRatio {
		raise(types.HealthWarning,
			fmt.Sprintf("%d of %d entries score below review quality", report.LowQuality, report.Total),
			"run RunFullMaintenance to clean up low-quality entries")
	}
	if largest >= healthClusterWarnSize {
		raise(types.HealthWarning,
			fmt.Sprintf("duplicate cluster of %d near-identical entries detected", largest),
			"run ExecuteConsolidation on the reported clusters")
	} else if len(clusters) > 0 {
		raise(types.HealthWarning,
			fmt.Sprintf("%d duplicate clusters detected", len(clusters)),
			"review FindConsolidationCandidates output")
	}
	if report.Total > healthSizeCritical {
		raise(types.HealthCritical,
			fmt.Sprintf("store holds %d entries", report.Total),
			"tighten decay windows or archive aggressively")
	} else if report.Total > healthSizeWarn {
		raise(types.HealthWarning,
			fmt.Sprintf("store holds %d entries", report.Total),
			"consider tightening decay windows")
	}

	return report, nil
}

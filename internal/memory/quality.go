package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/toolline/agent-memory/pkg/types"
)

// Quality score weights and thresholds.
const (
	weightRecency      = 0.25
	weightUsage        = 0.25
	weightFeedback     = 0.35
	weightCompleteness = 0.15

	usefulToMedium = 5  // cumulative useful reports promoting low -> medium
	usefulToHigh   = 10 // cumulative useful reports promoting medium -> high
	negativeDemote = 3  // cumulative negative reports demoting one step
	incorrectAlert = 2  // incorrect reports that trigger a review signal

	freshFeedbackWindow = 7 * 24 * time.Hour
)

// Quality computes the composite quality score for the entry with id.
// Returns false when the id is unknown.
func (s *Service) Quality(ctx context.Context, id string) (types.QualityScore, bool, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.QualityScore{}, false, err
	}
	idx := entryIndex(doc, id)
	if idx < 0 {
		return types.QualityScore{}, false, nil
	}
	return computeQuality(doc.Entries[idx], feedbackFor(doc, id), time.Now().UTC()), true, nil
}

// computeQuality derives the four components and the lifecycle
// recommendation. Critical entries always recommend keep; entries with
// incorrect or outdated feedback inside the fresh window recommend at
// least review.
func computeQuality(e types.MemoryEntry, feedback []types.MemoryFeedback, now time.Time) types.QualityScore {
	ageDays := now.Sub(e.UpdatedAt).Hours() / 24.0
	recency := 1.0 - ageDays/90.0
	if recency < 0 {
		recency = 0
	}

	usage := float64(e.UsageCount) / 20.0
	if usage > 1 {
		usage = 1
	}

	positive, negative := 0, 0
	freshProblem := false
	for _, fb := range feedback {
		if fb.Type.Negative() {
			negative++
			if (fb.Type == types.FeedbackIncorrect || fb.Type == types.FeedbackOutdated) &&
				now.Sub(fb.CreatedAt) <= freshFeedbackWindow {
				freshProblem = true
			}
		} else {
			positive++
		}
	}
	feedbackScore := 0.5
	if positive+negative > 0 {
		feedbackScore = float64(positive) / float64(positive+negative)
	}

	completeness := 0.0
	if len(e.Title) > 5 {
		completeness += 0.25
	}
	if len(e.Content) > 20 {
		completeness += 0.25
	}
	if len(e.Keywords) > 0 {
		completeness += 0.25
	}
	if e.HasTargetScope() {
		completeness += 0.25
	}

	overall := weightRecency*recency + weightUsage*usage +
		weightFeedback*feedbackScore + weightCompleteness*completeness

	var rec types.Recommendation
	switch {
	case overall >= 0.7:
		rec = types.RecommendKeep
	case overall >= 0.4:
		rec = types.RecommendReview
	case overall >= 0.2:
		rec = types.RecommendArchive
	default:
		rec = types.RecommendDelete
	}

	if e.Priority == types.PriorityCritical {
		rec = types.RecommendKeep
	} else if freshProblem && (rec == types.RecommendArchive || rec == types.RecommendDelete) {
		rec = types.RecommendReview
	}

	return types.QualityScore{
		Recency:        recency,
		Usage:          usage,
		Feedback:       feedbackScore,
		Completeness:   completeness,
		Overall:        overall,
		Recommendation: rec,
	}
}

// MarkUseful appends a useful feedback event and promotes the entry one
// step once cumulative useful reports cross the promotion thresholds.
// Promotion tops out at high; critical is never reached automatically.
func (s *Service) MarkUseful(ctx context.Context, id string, agent types.AgentSource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	idx := entryIndex(doc, id)
	if idx < 0 {
		return false, nil
	}

	doc.Feedback = append(doc.Feedback, types.MemoryFeedback{
		ID:        uuid.NewString(),
		MemoryID:  id,
		Type:      types.FeedbackUseful,
		Agent:     agent,
		CreatedAt: time.Now().UTC(),
	})

	useful := 0
	for _, fb := range doc.Feedback {
		if fb.MemoryID == id && fb.Type == types.FeedbackUseful {
			useful++
		}
	}

	e := &doc.Entries[idx]
	switch {
	case useful >= usefulToHigh && e.Priority == types.PriorityMedium:
		e.Priority = types.PriorityHigh
		s.logger.Info("memory promoted by feedback", "id", id, "priority", e.Priority, "useful", useful)
	case useful >= usefulToMedium && e.Priority == types.PriorityLow:
		e.Priority = types.PriorityMedium
		s.logger.Info("memory promoted by feedback", "id", id, "priority", e.Priority, "useful", useful)
	}

	return true, s.store.Save(ctx, doc)
}

// MarkProblematic appends a negative feedback event. The third
// cumulative negative report demotes high or medium entries one step;
// later reports do not keep demoting. Two incorrect reports emit a
// review signal in the log.
func (s *Service) MarkProblematic(ctx context.Context, id string, ftype types.FeedbackType, reason string, agent types.AgentSource) (bool, error) {
	if !ftype.Negative() {
		ftype = types.FeedbackNotUseful
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	idx := entryIndex(doc, id)
	if idx < 0 {
		return false, nil
	}

	doc.Feedback = append(doc.Feedback, types.MemoryFeedback{
		ID:        uuid.NewString(),
		MemoryID:  id,
		Type:      ftype,
		Reason:    reason,
		Agent:     agent,
		CreatedAt: time.Now().UTC(),
	})

	negative, incorrect := 0, 0
	for _, fb := range doc.Feedback {
		if fb.MemoryID != id {
			continue
		}
		if fb.Type.Negative() {
			negative++
		}
		if fb.Type == types.FeedbackIncorrect {
			incorrect++
		}
	}

	e := &doc.Entries[idx]
	if negative == negativeDemote && (e.Priority == types.PriorityHigh || e.Priority == types.PriorityMedium) {
		e.Priority = e.Priority.StepDown()
		s.logger.Info("memory demoted by feedback", "id", id, "priority", e.Priority, "negative", negative)
	}
	if incorrect >= incorrectAlert {
		s.logger.Warn("memory flagged for review: repeated incorrect reports", "id", id, "incorrect", incorrect)
	}

	return true, s.store.Save(ctx, doc)
}

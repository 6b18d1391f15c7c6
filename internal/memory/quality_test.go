package memory

import (
	"context"
	"testing"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

func TestComputeQuality_FreshUsedEntryKeeps(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	e := testEntry("m-1", func(e *types.MemoryEntry) {
		e.UpdatedAt = now
		e.UsageCount = 20
		e.TargetBrands = []string{"Milwaukee"}
	})

	q := computeQuality(e, nil, now)
	if q.Recency != 1 {
		t.Fatalf("expected recency 1, got %f", q.Recency)
	}
	if q.Usage != 1 {
		t.Fatalf("expected usage saturated at 1, got %f", q.Usage)
	}
	if q.Feedback != 0.5 {
		t.Fatalf("expected neutral feedback 0.5 with no reports, got %f", q.Feedback)
	}
	if q.Completeness != 1 {
		t.Fatalf("expected full completeness, got %f", q.Completeness)
	}
	if q.Recommendation != types.RecommendKeep {
		t.Fatalf("expected keep, got %q", q.Recommendation)
	}
}

func TestComputeQuality_UsageSaturates(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	e := testEntry("m-1", func(e *types.MemoryEntry) { e.UsageCount = 200 })

	q := computeQuality(e, nil, now)
	if q.Usage != 1 {
		t.Fatalf("expected usage capped at 1, got %f", q.Usage)
	}
}

func TestComputeQuality_StaleEmptyEntryDeletes(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	e := types.MemoryEntry{
		ID:        "stale",
		Title:     "x",
		Content:   "short",
		Priority:  types.PriorityLow,
		CreatedAt: now.Add(-120 * 24 * time.Hour),
		UpdatedAt: now.Add(-120 * 24 * time.Hour),
	}
	feedback := []types.MemoryFeedback{
		{MemoryID: "stale", Type: types.FeedbackNotUseful, CreatedAt: now.Add(-30 * 24 * time.Hour)},
	}

	q := computeQuality(e, feedback, now)
	if q.Recency != 0 {
		t.Fatalf("expected recency 0 past 90 days, got %f", q.Recency)
	}
	if q.Recommendation != types.RecommendDelete {
		t.Fatalf("expected delete, got %q", q.Recommendation)
	}
}

func TestComputeQuality_CriticalAlwaysKeeps(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	e := types.MemoryEntry{
		ID:        "crit",
		Title:     "x",
		Content:   "short",
		Priority:  types.PriorityCritical,
		UpdatedAt: now.Add(-200 * 24 * time.Hour),
	}

	q := computeQuality(e, nil, now)
	if q.Recommendation != types.RecommendKeep {
		t.Fatalf("expected critical entry to keep, got %q", q.Recommendation)
	}
}

func TestComputeQuality_FreshIncorrectFeedbackForcesReview(t *testing.T) {
	t.Parallel()
	now := time.Now().UTC()
	e := types.MemoryEntry{
		ID:        "wrong",
		Title:     "x",
		Content:   "short",
		Priority:  types.PriorityLow,
		UpdatedAt: now.Add(-120 * 24 * time.Hour),
	}
	feedback := []types.MemoryFeedback{
		{MemoryID: "wrong", Type: types.FeedbackIncorrect, CreatedAt: now.Add(-time.Hour)},
	}

	q := computeQuality(e, feedback, now)
	if q.Recommendation != types.RecommendReview {
		t.Fatalf("expected fresh incorrect report to force review, got %q", q.Recommendation)
	}
}

func TestMarkUseful_PromotesAtThresholds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFakeStore(testEntry("m-1", func(e *types.MemoryEntry) { e.Priority = types.PriorityLow }))
	svc := newTestService(st)

	for i := 0; i < usefulToMedium; i++ {
		found, err := svc.MarkUseful(ctx, "m-1", types.SourceProductAgent)
		if err != nil {
			t.Fatalf("MarkUseful() error = %v", err)
		}
		if !found {
			t.Fatal("expected entry to be found")
		}
	}
	if got := st.doc.Entries[0].Priority; got != types.PriorityMedium {
		t.Fatalf("expected promotion to medium after %d useful reports, got %q", usefulToMedium, got)
	}

	for i := usefulToMedium; i < usefulToHigh; i++ {
		if _, err := svc.MarkUseful(ctx, "m-1", types.SourceProductAgent); err != nil {
			t.Fatalf("MarkUseful() error = %v", err)
		}
	}
	if got := st.doc.Entries[0].Priority; got != types.PriorityHigh {
		t.Fatalf("expected promotion to high after %d useful reports, got %q", usefulToHigh, got)
	}

	// High is the automatic ceiling.
	for i := 0; i < 5; i++ {
		if _, err := svc.MarkUseful(ctx, "m-1", types.SourceProductAgent); err != nil {
			t.Fatalf("MarkUseful() error = %v", err)
		}
	}
	if got := st.doc.Entries[0].Priority; got != types.PriorityHigh {
		t.Fatalf("expected priority to stay high, got %q", got)
	}
}

func TestMarkUseful_UnknownID(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore())

	found, err := svc.MarkUseful(context.Background(), "ghost", types.SourceBlogAgent)
	if err != nil {
		t.Fatalf("MarkUseful() error = %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown id")
	}
}

func TestMarkProblematic_DemotesAtThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFakeStore(testEntry("m-1", func(e *types.MemoryEntry) { e.Priority = types.PriorityHigh }))
	svc := newTestService(st)

	for i := 0; i < negativeDemote; i++ {
		found, err := svc.MarkProblematic(ctx, "m-1", types.FeedbackNotUseful, "outdated advice", types.SourceProductAgent)
		if err != nil {
			t.Fatalf("MarkProblematic() error = %v", err)
		}
		if !found {
			t.Fatal("expected entry to be found")
		}
	}
	if got := st.doc.Entries[0].Priority; got != types.PriorityMedium {
		t.Fatalf("expected demotion to medium after %d negative reports, got %q", negativeDemote, got)
	}

	// The demotion fires only on the threshold report.
	if _, err := svc.MarkProblematic(ctx, "m-1", types.FeedbackNotUseful, "still bad", types.SourceProductAgent); err != nil {
		t.Fatalf("MarkProblematic() error = %v", err)
	}
	if got := st.doc.Entries[0].Priority; got != types.PriorityMedium {
		t.Fatalf("expected a fourth report not to demote again, got %q", got)
	}
}

func TestMarkProblematic_CoercesPositiveType(t *testing.T) {
	t.Parallel()
	st := newFakeStore(testEntry("m-1"))
	svc := newTestService(st)

	if _, err := svc.MarkProblematic(context.Background(), "m-1", types.FeedbackUseful, "", types.SourceAdmin); err != nil {
		t.Fatalf("MarkProblematic() error = %v", err)
	}
	if len(st.doc.Feedback) != 1 {
		t.Fatalf("expected 1 feedback row, got %d", len(st.doc.Feedback))
	}
	if st.doc.Feedback[0].Type != types.FeedbackNotUseful {
		t.Fatalf("expected positive type coerced to not_useful, got %q", st.doc.Feedback[0].Type)
	}
}

func TestQuality_UnknownID(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore())

	_, found, err := svc.Quality(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Quality() error = %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown id")
	}
}

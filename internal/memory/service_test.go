package memory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/config"
	"github.com/toolline/agent-memory/pkg/types"
)

// fakeStore holds the document in memory. Load hands out copies so
// in-place mutations by the service are only visible after Save, like a
// real backend.
type fakeStore struct {
	doc   types.MemoryDocument
	saves int
}

func newFakeStore(entries ...types.MemoryEntry) *fakeStore {
	doc := types.EmptyDocument()
	doc.Entries = append(doc.Entries, entries...)
	return &fakeStore{doc: doc}
}

func (f *fakeStore) Load(_ context.Context) (types.MemoryDocument, error) {
	out := f.doc
	out.Entries = append([]types.MemoryEntry(nil), f.doc.Entries...)
	out.Feedback = append([]types.MemoryFeedback(nil), f.doc.Feedback...)
	return out, nil
}

func (f *fakeStore) Save(_ context.Context, doc types.MemoryDocument) error {
	f.doc = doc
	f.saves++
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestService(st *fakeStore) *Service {
	return NewService(st, config.Default(), log.NewWithOptions(io.Discard, log.Options{}))
}

func testEntry(id string, mutate ...func(*types.MemoryEntry)) types.MemoryEntry {
	now := time.Now().UTC()
	e := types.MemoryEntry{
		ID:        id,
		Type:      types.TypeBrandNote,
		Source:    types.SourceBlogAgent,
		Title:     "Milwaukee battery platform",
		Content:   "The M18 battery platform is shared across the whole Milwaukee tool range.",
		Keywords:  []string{"milwaukee", "battery", "m18"},
		Priority:  types.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range mutate {
		m(&e)
	}
	return e
}

func TestAdd_DefaultsAndRoundTrip(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newTestService(st)

	added, err := svc.Add(context.Background(), types.AddInput{
		Type:    types.TypeVerifiedFact,
		Title:   "Cordless drill torque figures",
		Content: "Flagship cordless drills deliver over 1200 in-lbs of torque.",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if added.ID == "" {
		t.Fatal("expected generated id")
	}
	if added.Priority != types.PriorityMedium {
		t.Fatalf("expected default priority medium, got %q", added.Priority)
	}
	if added.Source != types.SourceSystem {
		t.Fatalf("expected default source system, got %q", added.Source)
	}
	if len(added.Keywords) == 0 {
		t.Fatal("expected auto-extracted keywords")
	}
	if added.UsageCount != 0 {
		t.Fatalf("expected zero usage count, got %d", added.UsageCount)
	}

	got, found, err := svc.Get(context.Background(), added.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found after Add")
	}
	if got.Title != added.Title || got.Content != added.Content {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestGet_UnknownID(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore())

	_, found, err := svc.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown id")
	}
}

func TestUpdate_RegeneratesKeywordsOnTextChange(t *testing.T) {
	t.Parallel()
	st := newFakeStore(testEntry("m-1"))
	svc := newTestService(st)

	newContent := "Ryobi One+ batteries are interchangeable across outdoor and power tools."
	updated, found, err := svc.Update(context.Background(), "m-1", types.UpdateInput{
		Content: &newContent,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if updated.Content != newContent {
		t.Fatalf("expected updated content, got %q", updated.Content)
	}
	hasRyobi := false
	for _, kw := range updated.Keywords {
		if kw == "ryobi" {
			hasRyobi = true
		}
	}
	if !hasRyobi {
		t.Fatalf("expected regenerated keywords to include ryobi, got %v", updated.Keywords)
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeStore())

	title := "anything"
	_, found, err := svc.Update(context.Background(), "ghost", types.UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if found {
		t.Fatal("expected found=false for unknown id")
	}
}

func TestUpdate_ClearExpiry(t *testing.T) {
	t.Parallel()
	expiry := time.Now().UTC().Add(24 * time.Hour)
	st := newFakeStore(testEntry("m-1", func(e *types.MemoryEntry) { e.ExpiresAt = &expiry }))
	svc := newTestService(st)

	updated, found, err := svc.Update(context.Background(), "m-1", types.UpdateInput{ClearExpiry: true})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if updated.ExpiresAt != nil {
		t.Fatalf("expected expiry cleared, got %v", updated.ExpiresAt)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	st := newFakeStore(testEntry("m-1"))
	svc := newTestService(st)

	removed, err := svc.Delete(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !removed {
		t.Fatal("expected delete to report true")
	}
	if len(st.doc.Entries) != 0 {
		t.Fatalf("expected empty store, got %d entries", len(st.doc.Entries))
	}

	removed, err = svc.Delete(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("Delete() second call error = %v", err)
	}
	if removed {
		t.Fatal("expected second delete to report false")
	}
}

func TestSearch_BumpsUsageOnReturnedEntriesOnly(t *testing.T) {
	t.Parallel()
	st := newFakeStore(
		testEntry("hit", func(e *types.MemoryEntry) { e.Title = "Milwaukee M18 battery guide" }),
		testEntry("miss", func(e *types.MemoryEntry) {
			e.Title = "Garden hose fittings"
			e.Content = "Brass fittings resist corrosion."
			e.Keywords = []string{"garden", "hose"}
		}),
	)
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{Query: "battery", Limit: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != "hit" {
		t.Fatalf("expected single result hit, got %+v", results)
	}
	if results[0].Entry.UsageCount != 1 {
		t.Fatalf("expected returned copy to show usage 1, got %d", results[0].Entry.UsageCount)
	}
	if results[0].Entry.LastUsedAt == nil {
		t.Fatal("expected LastUsedAt set on returned copy")
	}

	for _, e := range st.doc.Entries {
		switch e.ID {
		case "hit":
			if e.UsageCount != 1 {
				t.Fatalf("expected persisted usage 1 for hit, got %d", e.UsageCount)
			}
		case "miss":
			if e.UsageCount != 0 {
				t.Fatalf("expected usage untouched for non-returned entry, got %d", e.UsageCount)
			}
		}
	}
}

func TestPeek_NoUsageSideEffect(t *testing.T) {
	t.Parallel()
	st := newFakeStore(testEntry("m-1"))
	svc := newTestService(st)

	results, err := svc.Peek(context.Background(), types.SearchInput{Query: "battery"})
	if err != nil {
		t.Fatalf("Peek() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if st.saves != 0 {
		t.Fatalf("expected no save from Peek, got %d", st.saves)
	}
	if st.doc.Entries[0].UsageCount != 0 {
		t.Fatalf("expected usage untouched, got %d", st.doc.Entries[0].UsageCount)
	}
}

func TestSearch_ExcludesExpiredByDefault(t *testing.T) {
	t.Parallel()
	past := time.Now().UTC().Add(-time.Hour)
	st := newFakeStore(testEntry("dead", func(e *types.MemoryEntry) { e.ExpiresAt = &past }))
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{Query: "battery"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected expired entry excluded, got %d results", len(results))
	}

	results, err = svc.Search(context.Background(), types.SearchInput{Query: "battery", IncludeExpired: true})
	if err != nil {
		t.Fatalf("Search(IncludeExpired) error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected expired entry included, got %d results", len(results))
	}
}

func TestSearch_FiltersBySourceAndScope(t *testing.T) {
	t.Parallel()
	st := newFakeStore(
		testEntry("blog", func(e *types.MemoryEntry) {
			e.Source = types.SourceBlogAgent
			e.TargetBrands = []string{"Milwaukee"}
		}),
		testEntry("product", func(e *types.MemoryEntry) {
			e.Source = types.SourceProductAgent
			e.TargetBrands = []string{"Milwaukee"}
		}),
		testEntry("universal", func(e *types.MemoryEntry) {
			e.Source = types.SourceAdmin
			e.TargetBrands = nil
		}),
		testEntry("other-brand", func(e *types.MemoryEntry) {
			e.Source = types.SourceAdmin
			e.TargetBrands = []string{"DeWalt"}
		}),
	)
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{
		Brand:         "milwaukee",
		ExcludeSource: types.SourceProductAgent,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	got := map[string]bool{}
	for _, r := range results {
		got[r.Entry.ID] = true
	}
	if !got["blog"] || !got["universal"] {
		t.Fatalf("expected blog and universal entries, got %v", got)
	}
	if got["product"] {
		t.Fatal("expected product_agent entry excluded")
	}
	if got["other-brand"] {
		t.Fatal("expected other-brand entry excluded by scope")
	}
}

func TestSearch_MinPriority(t *testing.T) {
	t.Parallel()
	st := newFakeStore(
		testEntry("low", func(e *types.MemoryEntry) { e.Priority = types.PriorityLow }),
		testEntry("critical", func(e *types.MemoryEntry) { e.Priority = types.PriorityCritical }),
	)
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{MinPriority: types.PriorityHigh})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Entry.ID != "critical" {
		t.Fatalf("expected only critical entry, got %+v", results)
	}
}

func TestSearch_NoTermsRanksByPriority(t *testing.T) {
	t.Parallel()
	st := newFakeStore(
		testEntry("low", func(e *types.MemoryEntry) { e.Priority = types.PriorityLow }),
		testEntry("critical", func(e *types.MemoryEntry) { e.Priority = types.PriorityCritical }),
		testEntry("high", func(e *types.MemoryEntry) { e.Priority = types.PriorityHigh }),
	)
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	order := []string{results[0].Entry.ID, results[1].Entry.ID, results[2].Entry.ID}
	if order[0] != "critical" || order[1] != "high" || order[2] != "low" {
		t.Fatalf("expected priority order critical,high,low; got %v", order)
	}
}

func TestSearch_TitleOutranksContent(t *testing.T) {
	t.Parallel()
	st := newFakeStore(
		testEntry("title-hit", func(e *types.MemoryEntry) {
			e.Title = "Impact driver selection"
			e.Content = "General guidance for power tools."
			e.Keywords = []string{"tools"}
		}),
		testEntry("content-hit", func(e *types.MemoryEntry) {
			e.Title = "General guidance"
			e.Content = "Choose an impact driver by torque class."
			e.Keywords = []string{"torque"}
		}),
	)
	svc := newTestService(st)

	results, err := svc.Search(context.Background(), types.SearchInput{Query: "impact driver"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Entry.ID != "title-hit" {
		t.Fatalf("expected title match ranked first, got %q", results[0].Entry.ID)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	past := time.Now().UTC().Add(-time.Hour)
	st := newFakeStore(
		testEntry("a", func(e *types.MemoryEntry) { e.Type = types.TypeBusinessRule }),
		testEntry("b", func(e *types.MemoryEntry) { e.Priority = types.PriorityHigh }),
		testEntry("c", func(e *types.MemoryEntry) { e.ExpiresAt = &past }),
	)
	svc := newTestService(st)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.ByType[types.TypeBusinessRule] != 1 {
		t.Fatalf("expected 1 business rule, got %d", stats.ByType[types.TypeBusinessRule])
	}
	if stats.ByPriority[types.PriorityHigh] != 1 {
		t.Fatalf("expected 1 high entry, got %d", stats.ByPriority[types.PriorityHigh])
	}
	if stats.Expired != 1 {
		t.Fatalf("expected 1 expired entry, got %d", stats.Expired)
	}
}

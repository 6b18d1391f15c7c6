package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/pkg/types"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "memory.db"), logger)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_DocumentRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestSQLite(t)

	empty, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on fresh store error = %v", err)
	}
	if len(empty.Entries) != 0 || empty.Version != types.DocumentVersion {
		t.Fatalf("expected fresh empty document, got %+v", empty)
	}

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	used := now.Add(time.Hour)
	expiry := now.Add(30 * 24 * time.Hour)
	doc := types.EmptyDocument()
	doc.Entries = []types.MemoryEntry{
		{
			ID:               "m-1",
			Type:             types.TypeBusinessRule,
			Source:           types.SourceBlogAgent,
			Title:            "No DeWalt comparisons",
			Content:          "Never mention or compare DeWalt in Milwaukee content.",
			TargetBrands:     []string{"Milwaukee"},
			TargetCategories: []string{"power tools"},
			Priority:         types.PriorityCritical,
			Keywords:         []string{"dewalt", "milwaukee"},
			ExpiresAt:        &expiry,
			CreatedAt:        now,
			UpdatedAt:        now,
			UsageCount:       3,
			LastUsedAt:       &used,
		},
		{
			ID:        "m-2",
			Type:      types.TypeBrandNote,
			Source:    types.SourceSystem,
			Title:     "Battery platform note",
			Content:   "M18 batteries are cross-compatible.",
			Priority:  types.PriorityMedium,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	doc.Feedback = []types.MemoryFeedback{
		{ID: "fb-1", MemoryID: "m-1", Type: types.FeedbackUseful, Agent: types.SourceProductAgent, CreatedAt: now},
	}

	if err := st.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	if got.LastUpdated.IsZero() {
		t.Fatal("expected LastUpdated stamped by Save")
	}

	var first types.MemoryEntry
	for _, e := range got.Entries {
		if e.ID == "m-1" {
			first = e
		}
	}
	if first.ID == "" {
		t.Fatal("expected m-1 in loaded document")
	}
	if first.Priority != types.PriorityCritical || first.Type != types.TypeBusinessRule {
		t.Fatalf("entry fields mismatch: %+v", first)
	}
	if len(first.TargetBrands) != 1 || first.TargetBrands[0] != "Milwaukee" {
		t.Fatalf("expected target brands preserved, got %v", first.TargetBrands)
	}
	if first.ExpiresAt == nil || !first.ExpiresAt.Equal(expiry) {
		t.Fatalf("expected expiry preserved, got %v", first.ExpiresAt)
	}
	if first.UsageCount != 3 || first.LastUsedAt == nil {
		t.Fatalf("expected usage counters preserved, got %+v", first)
	}
	if len(got.Feedback) != 1 || got.Feedback[0].MemoryID != "m-1" {
		t.Fatalf("expected feedback preserved, got %+v", got.Feedback)
	}
}

func TestSQLiteStore_SaveReplacesDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestSQLite(t)

	now := time.Now().UTC()
	doc := types.EmptyDocument()
	doc.Entries = []types.MemoryEntry{
		{ID: "m-1", Type: types.TypeBrandNote, Source: types.SourceSystem, Title: "a", Content: "b", Priority: types.PriorityMedium, CreatedAt: now, UpdatedAt: now},
		{ID: "m-2", Type: types.TypeBrandNote, Source: types.SourceSystem, Title: "c", Content: "d", Priority: types.PriorityMedium, CreatedAt: now, UpdatedAt: now},
	}
	if err := st.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	doc.Entries = doc.Entries[:1]
	if err := st.Save(ctx, doc); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID != "m-1" {
		t.Fatalf("expected whole-document replacement, got %+v", got.Entries)
	}
}

func TestSQLiteStore_RequestLogsAndRecentEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestSQLite(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	doc := types.EmptyDocument()
	doc.Entries = []types.MemoryEntry{
		{ID: "m-old", Type: types.TypeBrandNote, Source: types.SourceSystem, Title: "older", Content: "x", Priority: types.PriorityLow, CreatedAt: base.Add(-time.Minute), UpdatedAt: base.Add(-time.Minute)},
		{ID: "m-new", Type: types.TypeBusinessRule, Source: types.SourceAdmin, Title: "newest", Content: "y", Priority: types.PriorityHigh, CreatedAt: base, UpdatedAt: base},
	}
	if err := st.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := st.InsertToolRequestLog(ctx, ToolRequestLog{
		Method:     "initialize",
		Success:    true,
		DurationMS: 2,
		CreatedAt:  base.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("InsertToolRequestLog(initialize) error = %v", err)
	}
	if err := st.InsertToolRequestLog(ctx, ToolRequestLog{
		Method:     "tools/call",
		ToolName:   "memory_search",
		Success:    false,
		ErrorText:  "unknown tool",
		DurationMS: 11,
		CreatedAt:  base,
	}); err != nil {
		t.Fatalf("InsertToolRequestLog(tools/call) error = %v", err)
	}

	logs, err := st.RecentToolRequestLogs(ctx, 5)
	if err != nil {
		t.Fatalf("RecentToolRequestLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 request logs, got %d", len(logs))
	}
	if logs[0].Method != "tools/call" || logs[0].ToolName != "memory_search" {
		t.Fatalf("expected newest request first, got %+v", logs[0])
	}
	if logs[0].Success {
		t.Fatal("expected newest request success=false")
	}

	recent, err := st.RecentEntries(ctx, 5)
	if err != nil {
		t.Fatalf("RecentEntries() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent entries, got %d", len(recent))
	}
	if recent[0].ID != "m-new" {
		t.Fatalf("expected newest entry first, got %q", recent[0].ID)
	}
	if recent[0].Priority != string(types.PriorityHigh) {
		t.Fatalf("expected priority high, got %q", recent[0].Priority)
	}
}

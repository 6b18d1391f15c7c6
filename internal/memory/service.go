// Package memory implements the shared agent-memory subsystem: CRUD and
// ranked retrieval over a single versioned document, plus the quality,
// decay, consolidation and maintenance engines layered on top.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/toolline/agent-memory/internal/config"
	"github.com/toolline/agent-memory/internal/store"
	"github.com/toolline/agent-memory/pkg/types"
)

// Service coordinates all memory operations. Every mutation is a
// whole-document read-modify-write guarded by one coarse mutex; the
// document is small, so whole-document locking keeps the original
// semantics without silent lost updates.
type Service struct {
	store  store.Store
	cfg    config.Config
	logger *log.Logger

	mu sync.Mutex
}

// NewService constructs a memory service.
func NewService(st store.Store, cfg config.Config, logger *log.Logger) *Service {
	return &Service{store: st, cfg: cfg, logger: logger}
}

// Add creates an entry with a generated id and zeroed counters. Input
// is trusted; only optional fields are defaulted, per the subsystem's
// in-process contract.
func (s *Service) Add(ctx context.Context, in types.AddInput) (types.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.MemoryEntry{}, err
	}

	now := time.Now().UTC()
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	source := in.Source
	if source == "" {
		source = types.SourceSystem
	}
	keywords := in.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(in.Title, in.Content)
	}

	entry := types.MemoryEntry{
		ID:               uuid.NewString(),
		Type:             in.Type,
		Source:           source,
		Title:            in.Title,
		Content:          in.Content,
		TargetBrands:     in.TargetBrands,
		TargetCategories: in.TargetCategories,
		TargetProducts:   in.TargetProducts,
		Priority:         priority,
		Keywords:         keywords,
		ExpiresAt:        in.ExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	doc.Entries = append(doc.Entries, entry)
	if err := s.store.Save(ctx, doc); err != nil {
		return types.MemoryEntry{}, err
	}

	s.logger.Debug("memory added", "id", entry.ID, "type", entry.Type, "source", entry.Source)
	return entry, nil
}

// Get returns the entry for id. The second return is false when the id
// is unknown; callers log and continue.
func (s *Service) Get(ctx context.Context, id string) (types.MemoryEntry, bool, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.MemoryEntry{}, false, err
	}
	for _, e := range doc.Entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return types.MemoryEntry{}, false, nil
}

// Update merges the supplied fields into the entry and bumps UpdatedAt.
// Keywords are regenerated when title or content changed and no
// replacement keywords were supplied. Returns false for an unknown id.
func (s *Service) Update(ctx context.Context, id string, in types.UpdateInput) (types.MemoryEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.MemoryEntry{}, false, err
	}

	idx := entryIndex(doc, id)
	if idx < 0 {
		return types.MemoryEntry{}, false, nil
	}

	e := &doc.Entries[idx]
	textChanged := false
	if in.Title != nil {
		e.Title = *in.Title
		textChanged = true
	}
	if in.Content != nil {
		e.Content = *in.Content
		textChanged = true
	}
	if in.TargetBrands != nil {
		e.TargetBrands = *in.TargetBrands
	}
	if in.TargetCategories != nil {
		e.TargetCategories = *in.TargetCategories
	}
	if in.TargetProducts != nil {
		e.TargetProducts = *in.TargetProducts
	}
	if in.Priority != nil {
		e.Priority = *in.Priority
	}
	if in.Keywords != nil {
		e.Keywords = *in.Keywords
	} else if textChanged {
		e.Keywords = ExtractKeywords(e.Title, e.Content)
	}
	if in.ClearExpiry {
		e.ExpiresAt = nil
	} else if in.ExpiresAt != nil {
		e.ExpiresAt = in.ExpiresAt
	}
	e.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, doc); err != nil {
		return types.MemoryEntry{}, false, err
	}
	return *e, true, nil
}

// Delete removes the entry. Feedback rows referencing it are left
// orphaned; they are never read once the parent is gone.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
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
	doc.Entries = append(doc.Entries[:idx], doc.Entries[idx+1:]...)

	if err := s.store.Save(ctx, doc); err != nil {
		return false, err
	}
	s.logger.Debug("memory deleted", "id", id)
	return true, nil
}

// Stats aggregates counts by type, source and priority, plus entries
// that are expired but not yet purged.
func (s *Service) Stats(ctx context.Context) (types.MemoryStats, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return types.MemoryStats{}, err
	}

	now := time.Now().UTC()
	st := types.MemoryStats{
		Total:      len(doc.Entries),
		ByType:     map[types.MemoryType]int{},
		BySource:   map[types.AgentSource]int{},
		ByPriority: map[types.Priority]int{},
	}
	for _, e := range doc.Entries {
		st.ByType[e.Type]++
		st.BySource[e.Source]++
		st.ByPriority[e.Priority]++
		if e.Expired(now) {
			st.Expired++
		}
	}
	return st, nil
}

func entryIndex(doc types.MemoryDocument, id string) int {
	for i, e := range doc.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func feedbackFor(doc types.MemoryDocument, id string) []types.MemoryFeedback {
	var out []types.MemoryFeedback
	for _, fb := range doc.Feedback {
		if fb.MemoryID == id {
			out = append(out, fb)
		}
	}
	return out
}

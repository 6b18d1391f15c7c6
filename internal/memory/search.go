package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

// Priority weight tables. Every scoring, decay and cleanup call site
// reads these; the numbers live nowhere else.
var (
	priorityWeights = map[types.Priority]float64{
		types.PriorityCritical: 4,
		types.PriorityHigh:     3,
		types.PriorityMedium:   2,
		types.PriorityLow:      1,
	}
	priorityMultipliers = map[types.Priority]float64{
		types.PriorityCritical: 1.5,
		types.PriorityHigh:     1.2,
		types.PriorityMedium:   1.0,
		types.PriorityLow:      0.8,
	}
)

func priorityWeight(p types.Priority) float64 {
	if w, ok := priorityWeights[p]; ok {
		return w
	}
	return priorityWeights[types.PriorityMedium]
}

func priorityMultiplier(p types.Priority) float64 {
	if m, ok := priorityMultipliers[p]; ok {
		return m
	}
	return 1.0
}

// Search returns entries ranked by relevance. Search has a documented
// write side effect: every entry actually returned gets its usage
// counter bumped and LastUsedAt set, which feeds the decay and quality
// engines without a separate reporting call. Use Peek when usage
// statistics must not be perturbed.
func (s *Service) Search(ctx context.Context, in types.SearchInput) ([]types.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := rankEntries(doc, in, now, s.cfg.DefaultSearchLimit)
	if len(results) == 0 {
		return results, nil
	}

	// Read counts as use: bump counters on the returned set only.
	returned := map[string]struct{}{}
	for _, r := range results {
		returned[r.Entry.ID] = struct{}{}
	}
	for i := range doc.Entries {
		if _, ok := returned[doc.Entries[i].ID]; !ok {
			continue
		}
		doc.Entries[i].UsageCount++
		t := now
		doc.Entries[i].LastUsedAt = &t
	}
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, err
	}

	// Reflect the bumped counters in the returned copies.
	for i := range results {
		results[i].Entry.UsageCount++
		t := now
		results[i].Entry.LastUsedAt = &t
	}
	return results, nil
}

// Peek is the pure variant of Search: same selection and ranking, no
// usage side effect. Maintenance and consolidation paths use it so they
// do not inflate usage statistics.
func (s *Service) Peek(ctx context.Context, in types.SearchInput) ([]types.SearchResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return rankEntries(doc, in, time.Now().UTC(), s.cfg.DefaultSearchLimit), nil
}

func rankEntries(doc types.MemoryDocument, in types.SearchInput, now time.Time, defaultLimit int) []types.SearchResult {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	terms := searchTerms(in)
	results := make([]types.SearchResult, 0, limit)
	for _, e := range doc.Entries {
		if !matchesFilters(e, in, now) {
			continue
		}
		results = append(results, types.SearchResult{
			Entry: e,
			Score: relevanceScore(e, terms, now),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return priorityWeight(results[i].Entry.Priority) > priorityWeight(results[j].Entry.Priority)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func searchTerms(in types.SearchInput) []string {
	seen := map[string]struct{}{}
	terms := make([]string, 0, 8)
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, tok := range tokenize(in.Query) {
		add(tok)
	}
	for _, kw := range in.Keywords {
		add(kw)
	}
	return terms
}

func matchesFilters(e types.MemoryEntry, in types.SearchInput, now time.Time) bool {
	if !in.IncludeExpired && e.Expired(now) {
		return false
	}
	if len(in.Types) > 0 && !containsType(in.Types, e.Type) {
		return false
	}
	if in.Source != "" && e.Source != in.Source {
		return false
	}
	if in.ExcludeSource != "" && e.Source == in.ExcludeSource {
		return false
	}
	if !targetMatches(e.TargetBrands, in.Brand) {
		return false
	}
	if !targetMatches(e.TargetCategories, in.Category) {
		return false
	}
	if !targetMatches(e.TargetProducts, in.Product) {
		return false
	}
	if in.MinPriority != "" && priorityWeight(e.Priority) < priorityWeight(in.MinPriority) {
		return false
	}
	return true
}

// targetMatches implements scoped filtering: an empty target set means
// the entry applies universally for that dimension.
func targetMatches(targets []string, want string) bool {
	if want == "" || len(targets) == 0 {
		return true
	}
	for _, t := range targets {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func containsType(ts []types.MemoryType, t types.MemoryType) bool {
	for _, candidate := range ts {
		if candidate == t {
			return true
		}
	}
	return false
}

// relevanceScore ranks one entry against the search terms. With no
// terms the score is the bare priority weight. With terms, each match
// category (title, keyword, content) is counted at most once per entry
// no matter how many terms hit it, then scaled by priority and recency.
func relevanceScore(e types.MemoryEntry, terms []string, now time.Time) float64 {
	if len(terms) == 0 {
		return priorityWeight(e.Priority)
	}

	title := strings.ToLower(e.Title)
	content := strings.ToLower(e.Content)

	var titleHit, keywordHit, contentHit bool
	for _, term := range terms {
		if !titleHit && strings.Contains(title, term) {
			titleHit = true
		}
		if !keywordHit && keywordMatch(e.Keywords, term) {
			keywordHit = true
		}
		if !contentHit && strings.Contains(content, term) {
			contentHit = true
		}
	}

	score := 0.0
	if titleHit {
		score += 10
	}
	if keywordHit {
		score += 5
	}
	if contentHit {
		score += 2
	}

	score *= priorityMultiplier(e.Priority)

	age := now.Sub(e.CreatedAt)
	switch {
	case age < 7*24*time.Hour:
		score *= 1.2
	case age < 30*24*time.Hour:
		score *= 1.1
	}
	return score
}

// keywordMatch allows partial overlap in either direction so stemmed
// forms like "battery"/"batteries" still connect.
func keywordMatch(keywords []string, term string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(kw, term) || strings.Contains(term, kw) {
			return true
		}
	}
	return false
}

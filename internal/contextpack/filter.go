// Package contextpack turns a pool of candidate memory entries into a
// bounded text block fit for prompt injection: filter by an independent
// relevance function, then compress into a grouped, length-budgeted
// summary. Every removal is recorded with a reason so callers can audit
// exactly why an entry was dropped.
package contextpack

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/toolline/agent-memory/pkg/types"
)

// FilterOptions tunes relevance filtering.
type FilterOptions struct {
	Query             string
	Keywords          []string
	MinRelevanceScore float64 // defaults to 0.3
	MaxEntries        int     // 0 means unlimited
}

// FilterResult reports survivors, casualties and why each was removed.
type FilterResult struct {
	Filtered []types.MemoryEntry
	Removed  []types.MemoryEntry
	Reasons  map[string]string
}

// Filter scores each entry against the query and drops those below the
// relevance threshold, then trims survivors past MaxEntries by rank.
// The relevance function here is deliberately independent of search
// ranking: priority carries 30%, term matching 70%.
func Filter(entries []types.MemoryEntry, opts FilterOptions) FilterResult {
	minScore := opts.MinRelevanceScore
	if minScore <= 0 {
		minScore = 0.3
	}
	terms := collectTerms(opts.Query, opts.Keywords)
	now := time.Now().UTC()

	type scored struct {
		entry types.MemoryEntry
		score float64
	}
	ranked := make([]scored, 0, len(entries))
	result := FilterResult{Reasons: map[string]string{}}

	for _, e := range entries {
		score := contextRelevance(e, terms, now)
		if score < minScore {
			result.Removed = append(result.Removed, e)
			result.Reasons[e.ID] = fmt.Sprintf("below relevance threshold (%.2f < %.2f)", score, minScore)
			continue
		}
		ranked = append(ranked, scored{entry: e, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for i, r := range ranked {
		if opts.MaxEntries > 0 && i >= opts.MaxEntries {
			result.Removed = append(result.Removed, r.entry)
			result.Reasons[r.entry.ID] = fmt.Sprintf("over max entries limit (%d)", opts.MaxEntries)
			continue
		}
		result.Filtered = append(result.Filtered, r.entry)
	}
	return result
}

var priorityBase = map[types.Priority]float64{
	types.PriorityCritical: 0.8,
	types.PriorityHigh:     0.6,
	types.PriorityMedium:   0.4,
	types.PriorityLow:      0.2,
}

// contextRelevance combines a priority base (30%) with a term-match
// ratio (70%), boosted for recent and frequently used entries, clamped
// to [0,1]. With no terms the priority base stands alone.
func contextRelevance(e types.MemoryEntry, terms []string, now time.Time) float64 {
	base, ok := priorityBase[e.Priority]
	if !ok {
		base = priorityBase[types.PriorityMedium]
	}

	var score float64
	if len(terms) == 0 {
		score = base
	} else {
		title := strings.ToLower(e.Title)
		content := strings.ToLower(e.Content)
		earned := 0.0
		for _, term := range terms {
			if strings.Contains(title, term) {
				earned += 3
			}
			if keywordHit(e.Keywords, term) {
				earned += 2
			}
			if strings.Contains(content, term) {
				earned += 1
			}
		}
		ratio := earned / float64(6*len(terms))
		score = base*0.3 + ratio*0.7
	}

	if now.Sub(e.CreatedAt) < 7*24*time.Hour {
		score *= 1.1
	}
	switch {
	case e.UsageCount > 10:
		score *= 1.1
	case e.UsageCount > 5:
		score *= 1.05
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func keywordHit(keywords []string, term string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(kw, term) || strings.Contains(term, kw) {
			return true
		}
	}
	return false
}

func collectTerms(query string, keywords []string) []string {
	seen := map[string]struct{}{}
	var terms []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	var sb strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			continue
		}
		add(sb.String())
		sb.Reset()
	}
	add(sb.String())
	for _, kw := range keywords {
		add(kw)
	}
	return terms
}

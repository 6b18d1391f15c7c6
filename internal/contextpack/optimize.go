package contextpack

import "github.com/toolline/agent-memory/pkg/types"

// OptimizeResult is the combined filter-then-summarize outcome.
type OptimizeResult struct {
	Filter  FilterResult
	Summary SummaryResult
	// IDs of the entries that made it into the summary input.
	IDs []string
}

// Optimize is the standard auto-inject path: filter the candidate pool,
// then summarize what survived.
func Optimize(entries []types.MemoryEntry, fopts FilterOptions, sopts SummarizeOptions) OptimizeResult {
	filtered := Filter(entries, fopts)
	summary := Summarize(filtered.Filtered, sopts)

	ids := make([]string, 0, len(filtered.Filtered))
	for _, e := range filtered.Filtered {
		ids = append(ids, e.ID)
	}
	return OptimizeResult{Filter: filtered, Summary: summary, IDs: ids}
}

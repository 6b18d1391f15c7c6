package contextpack

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/toolline/agent-memory/pkg/types"
)

// SummarizeOptions tunes summary rendering.
type SummarizeOptions struct {
	MaxLength        int  // defaults to 500 characters
	PreserveCritical bool // render critical entries verbatim
	GroupByType      bool // one section per memory type
}

// DefaultSummarizeOptions matches the auto-inject path.
func DefaultSummarizeOptions() SummarizeOptions {
	return SummarizeOptions{MaxLength: 500, PreserveCritical: true, GroupByType: true}
}

// SummaryResult carries the rendered block and observability numbers.
type SummaryResult struct {
	Summary          string
	OriginalCount    int
	CriticalCount    int
	CompressionRatio float64
}

// groupOrder fixes section ordering so output is deterministic.
var groupOrder = []types.MemoryType{
	types.TypeBusinessRule,
	types.TypeContentGuideline,
	types.TypeBrandNote,
	types.TypeProductInsight,
	types.TypeVerifiedFact,
	types.TypeCrossAgentNote,
	types.TypeTemplate,
}

var groupLabels = map[types.MemoryType]string{
	types.TypeBusinessRule:     "Business rules",
	types.TypeContentGuideline: "Content guidelines",
	types.TypeBrandNote:        "Brand notes",
	types.TypeProductInsight:   "Product insights",
	types.TypeVerifiedFact:     "Verified facts",
	types.TypeCrossAgentNote:   "Notes from other agents",
	types.TypeTemplate:         "Templates",
}

const bulletContentLimit = 100

// Summarize compresses entries into a bounded text block. Critical
// entries are rendered verbatim first and never summarized away; the
// rest are grouped, priority-sorted and budgeted, with a "+N more"
// marker where a group's budget runs out. The final blanket clamp to
// MaxLength can still cut into the critical block, matching the
// original assemble-then-slice behavior.
func Summarize(entries []types.MemoryEntry, opts SummarizeOptions) SummaryResult {
	if opts.MaxLength <= 0 {
		opts.MaxLength = 500
	}

	result := SummaryResult{OriginalCount: len(entries)}
	originalChars := 0
	for _, e := range entries {
		originalChars += len(e.Title) + len(e.Content)
	}

	var critical, rest []types.MemoryEntry
	for _, e := range entries {
		if opts.PreserveCritical && e.Priority == types.PriorityCritical {
			critical = append(critical, e)
			continue
		}
		rest = append(rest, e)
	}
	result.CriticalCount = len(critical)

	var parts []string
	if len(critical) > 0 {
		lines := make([]string, 0, len(critical)+1)
		lines = append(lines, "CRITICAL RULES:")
		for _, e := range critical {
			lines = append(lines, fmt.Sprintf("- %s: %s", e.Title, e.Content))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	groups := groupEntries(rest, opts.GroupByType)
	if len(groups) > 0 {
		criticalLen := 0
		if len(parts) > 0 {
			criticalLen = len(parts[0])
		}
		remaining := opts.MaxLength - criticalLen
		if remaining < 0 {
			remaining = 0
		}
		groupBudget := remaining / len(groups)

		for _, g := range groups {
			parts = append(parts, renderGroup(g.label, g.entries, groupBudget))
		}
	}

	summary := strings.Join(parts, "\n\n")
	summary = clipRunes(summary, opts.MaxLength)
	result.Summary = summary

	if len(summary) > 0 {
		result.CompressionRatio = float64(originalChars) / float64(len(summary))
	}
	return result
}

type entryGroup struct {
	label   string
	entries []types.MemoryEntry
}

func groupEntries(entries []types.MemoryEntry, byType bool) []entryGroup {
	if len(entries) == 0 {
		return nil
	}
	if !byType {
		return []entryGroup{{label: "Context", entries: entries}}
	}

	byKind := map[types.MemoryType][]types.MemoryEntry{}
	for _, e := range entries {
		byKind[e.Type] = append(byKind[e.Type], e)
	}

	var groups []entryGroup
	for _, kind := range groupOrder {
		if members, ok := byKind[kind]; ok {
			groups = append(groups, entryGroup{label: groupLabels[kind], entries: members})
			delete(byKind, kind)
		}
	}
	// Unknown types land in one trailing bucket.
	var leftovers []types.MemoryEntry
	for _, members := range byKind {
		leftovers = append(leftovers, members...)
	}
	if len(leftovers) > 0 {
		sort.SliceStable(leftovers, func(i, j int) bool { return leftovers[i].ID < leftovers[j].ID })
		groups = append(groups, entryGroup{label: "Other", entries: leftovers})
	}
	return groups
}

// clipRunes truncates to limit runes, never splitting a multibyte
// character. Summaries feed generation prompts, so output must stay
// valid UTF-8.
func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func renderGroup(label string, entries []types.MemoryEntry, budget int) string {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority.Rank() > entries[j].Priority.Rank()
	})

	lines := []string{label + ":"}
	used := len(lines[0])
	for i, e := range entries {
		content := e.Content
		if utf8.RuneCountInString(content) > bulletContentLimit {
			content = clipRunes(content, bulletContentLimit-3) + "..."
		}
		line := fmt.Sprintf("- %s: %s", e.Title, content)
		if budget > 0 && used+len(line) > budget {
			lines = append(lines, fmt.Sprintf("+%d more", len(entries)-i))
			break
		}
		lines = append(lines, line)
		used += len(line)
	}
	return strings.Join(lines, "\n")
}

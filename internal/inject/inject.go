// Package inject wraps generation prompts with relevant shared memory.
// It is the convenience layer agents call right before asking the text
// generator for content: search with the agent's scope, drop the
// agent's own notes, compress, prepend.
package inject

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/contextpack"
	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/pkg/types"
)

// Config selects what memory gets injected and for whom.
type Config struct {
	AgentSource types.AgentSource `json:"agent_source"`
	Brand       string            `json:"brand,omitempty"`
	Category    string            `json:"category,omitempty"`
	Product     string            `json:"product,omitempty"`

	IncludeBusinessRules   bool `json:"include_business_rules,omitempty"`
	IncludeBrandNotes      bool `json:"include_brand_notes,omitempty"`
	IncludeProductInsights bool `json:"include_product_insights,omitempty"`
	IncludeCrossAgentNotes bool `json:"include_cross_agent_notes,omitempty"`
	IncludeVerifiedFacts   bool `json:"include_verified_facts,omitempty"`

	MaxLength    int     `json:"max_length,omitempty"`
	MinRelevance float64 `json:"min_relevance,omitempty"`
	MaxEntries   int     `json:"max_entries,omitempty"`
}

// DefaultConfig enables every memory type for the given agent.
func DefaultConfig(agent types.AgentSource) Config {
	return Config{
		AgentSource:            agent,
		IncludeBusinessRules:   true,
		IncludeBrandNotes:      true,
		IncludeProductInsights: true,
		IncludeCrossAgentNotes: true,
		IncludeVerifiedFacts:   true,
		MaxLength:              500,
		MinRelevance:           0.3,
		MaxEntries:             8,
	}
}

// Result reports the wrapped prompt and what went into it.
type Result struct {
	Prompt           string   `json:"prompt"`
	InjectedIDs      []string `json:"injected_ids"`
	FoundCount       int      `json:"found_count"`
	InjectedCount    int      `json:"injected_count"`
	CharsAdded       int      `json:"chars_added"`
	CompressionRatio float64  `json:"compression_ratio"`
}

// Injector performs memory injection against a memory service.
type Injector struct {
	svc    *memory.Service
	logger *log.Logger
}

// New constructs an injector.
func New(svc *memory.Service, logger *log.Logger) *Injector {
	return &Injector{svc: svc, logger: logger}
}

// WrapPrompt searches memory in the prompt's brand/category/product
// scope, excludes entries the calling agent authored itself (an agent
// should not hear its own voice back), compresses the survivors and
// prepends them to the prompt. Search counts as use, so injected
// entries feed the decay engine automatically.
func (i *Injector) WrapPrompt(ctx context.Context, prompt string, cfg Config) (Result, error) {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 500
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 8
	}

	query := strings.TrimSpace(strings.Join([]string{cfg.Brand, cfg.Category, cfg.Product}, " "))
	results, err := i.svc.Search(ctx, types.SearchInput{
		Query:         query,
		Types:         cfg.typeFilter(),
		ExcludeSource: cfg.AgentSource,
		Brand:         cfg.Brand,
		Category:      cfg.Category,
		Product:       cfg.Product,
		Limit:         cfg.MaxEntries * 3,
	})
	if err != nil {
		return Result{}, err
	}

	entries := make([]types.MemoryEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, r.Entry)
	}

	opt := contextpack.Optimize(entries,
		contextpack.FilterOptions{
			Query:             query,
			MinRelevanceScore: cfg.MinRelevance,
			MaxEntries:        cfg.MaxEntries,
		},
		contextpack.SummarizeOptions{
			MaxLength:        cfg.MaxLength,
			PreserveCritical: true,
			GroupByType:      true,
		})

	res := Result{
		Prompt:           prompt,
		InjectedIDs:      opt.IDs,
		FoundCount:       len(entries),
		InjectedCount:    len(opt.IDs),
		CompressionRatio: opt.Summary.CompressionRatio,
	}
	if len(opt.IDs) == 0 || opt.Summary.Summary == "" {
		return res, nil
	}

	block := fmt.Sprintf("%s\n%s\n\n", contextHeader(cfg), opt.Summary.Summary)
	res.Prompt = block + prompt
	res.CharsAdded = len(block)

	i.logger.Debug("memory injected into prompt",
		"agent", cfg.AgentSource, "found", res.FoundCount, "injected", res.InjectedCount,
		"chars", res.CharsAdded)
	return res, nil
}

// contextHeader labels the injected block in both storefront languages
// and names the scope it was retrieved for.
func contextHeader(cfg Config) string {
	scope := make([]string, 0, 3)
	if cfg.Brand != "" {
		scope = append(scope, "brand: "+cfg.Brand)
	}
	if cfg.Category != "" {
		scope = append(scope, "category: "+cfg.Category)
	}
	if cfg.Product != "" {
		scope = append(scope, "product: "+cfg.Product)
	}
	header := "### Shared memory context / Contexto de memoria compartida"
	if len(scope) > 0 {
		header += " (" + strings.Join(scope, ", ") + ")"
	}
	return header
}

// typeFilter resolves the boolean toggles into a type list. With no
// toggle set, every injectable type is included.
func (c Config) typeFilter() []types.MemoryType {
	var out []types.MemoryType
	if c.IncludeBusinessRules {
		out = append(out, types.TypeBusinessRule)
	}
	if c.IncludeBrandNotes {
		out = append(out, types.TypeBrandNote)
	}
	if c.IncludeProductInsights {
		out = append(out, types.TypeProductInsight)
	}
	if c.IncludeCrossAgentNotes {
		out = append(out, types.TypeCrossAgentNote)
	}
	if c.IncludeVerifiedFacts {
		out = append(out, types.TypeVerifiedFact)
	}
	if len(out) == 0 {
		out = []types.MemoryType{
			types.TypeBusinessRule, types.TypeBrandNote, types.TypeProductInsight,
			types.TypeCrossAgentNote, types.TypeVerifiedFact,
		}
	}
	return out
}

// RecordUsage reports generation success back to the quality engine for
// the ids that were injected. Callers invoke it after the generation
// step, so feedback tracks generation quality rather than retrieval.
func (i *Injector) RecordUsage(ctx context.Context, ids []string, success bool, agent types.AgentSource) error {
	if !success {
		i.logger.Debug("generation failed; skipping usage feedback", "agent", agent, "ids", len(ids))
		return nil
	}
	for _, id := range ids {
		if _, err := i.svc.MarkUseful(ctx, id, agent); err != nil {
			return fmt.Errorf("record usage for %s: %w", id, err)
		}
	}
	return nil
}

// Package agents provides the two thin façades the content pipeline
// uses to talk to shared memory: the product-description agent reads
// rules and notes before writing copy, the blog-research agent leaves
// notes for the product agent to find.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/inject"
	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/pkg/types"
)

// Scope narrows memory retrieval to a brand, category or product.
type Scope struct {
	Brand    string
	Category string
	Product  string
}

// ProductAgent is the product-description writer's view of memory.
type ProductAgent struct {
	svc      *memory.Service
	injector *inject.Injector
	logger   *log.Logger
}

// NewProductAgent constructs the product-agent façade.
func NewProductAgent(svc *memory.Service, logger *log.Logger) *ProductAgent {
	return &ProductAgent{svc: svc, injector: inject.New(svc, logger), logger: logger}
}

// WrapPrompt injects product-scoped memory into a generation prompt.
func (a *ProductAgent) WrapPrompt(ctx context.Context, prompt string, scope Scope) (inject.Result, error) {
	cfg := inject.DefaultConfig(types.SourceProductAgent)
	cfg.Brand = scope.Brand
	cfg.Category = scope.Category
	cfg.Product = scope.Product
	return a.injector.WrapPrompt(ctx, prompt, cfg)
}

// RecordUsage reports generation success for previously injected ids.
func (a *ProductAgent) RecordUsage(ctx context.Context, ids []string, success bool) error {
	return a.injector.RecordUsage(ctx, ids, success, types.SourceProductAgent)
}

// BusinessRulesFor returns the business rules in scope. Rules count as
// used: they are about to steer a generation.
func (a *ProductAgent) BusinessRulesFor(ctx context.Context, scope Scope) ([]types.MemoryEntry, error) {
	results, err := a.svc.Search(ctx, types.SearchInput{
		Types:    []types.MemoryType{types.TypeBusinessRule},
		Brand:    scope.Brand,
		Category: scope.Category,
		Product:  scope.Product,
		Limit:    50,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]types.MemoryEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, r.Entry)
	}
	return entries, nil
}

// blockingPhrases are matched against critical business rules to decide
// whether generation for a scope must be skipped entirely.
var blockingPhrases = []string{
	"do not generate",
	"do not create",
	"do not write",
	"never generate",
	"skip this product",
	"blocked",
}

// HasBlockingRule reports whether a critical business rule in scope
// instructs the pipeline not to generate. The check itself must not
// count as usage, so it reads through Peek.
func (a *ProductAgent) HasBlockingRule(ctx context.Context, scope Scope) (bool, error) {
	results, err := a.svc.Peek(ctx, types.SearchInput{
		Types:       []types.MemoryType{types.TypeBusinessRule},
		MinPriority: types.PriorityCritical,
		Brand:       scope.Brand,
		Category:    scope.Category,
		Product:     scope.Product,
		Limit:       50,
	})
	if err != nil {
		return false, err
	}
	for _, r := range results {
		text := strings.ToLower(r.Entry.Title + " " + r.Entry.Content)
		for _, phrase := range blockingPhrases {
			if strings.Contains(text, phrase) {
				a.logger.Info("blocking rule found", "id", r.Entry.ID, "phrase", phrase)
				return true, nil
			}
		}
	}
	return false, nil
}

// FormatContext renders a sectioned, priority-flagged context block for
// direct use in a product-description prompt.
func (a *ProductAgent) FormatContext(ctx context.Context, scope Scope) (string, error) {
	sections := []struct {
		heading string
		types   []types.MemoryType
	}{
		{"Business rules", []types.MemoryType{types.TypeBusinessRule}},
		{"Notes from the blog agent", []types.MemoryType{types.TypeCrossAgentNote, types.TypeBrandNote}},
		{"Verified facts", []types.MemoryType{types.TypeVerifiedFact}},
	}

	var sb strings.Builder
	for _, section := range sections {
		results, err := a.svc.Search(ctx, types.SearchInput{
			Types:    section.types,
			Brand:    scope.Brand,
			Category: scope.Category,
			Product:  scope.Product,
			Limit:    10,
		})
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(section.heading + ":\n")
		for _, r := range results {
			sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n",
				strings.ToUpper(string(r.Entry.Priority)), r.Entry.Title, r.Entry.Content))
		}
	}
	return sb.String(), nil
}

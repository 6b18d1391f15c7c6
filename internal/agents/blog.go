package agents

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/inject"
	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/pkg/types"
)

// BlogAgent is the blog researcher's view of memory. Its helpers are
// thin wrappers over Add with the type and source fixed, so research
// findings become retrievable notes for the product agent.
type BlogAgent struct {
	svc      *memory.Service
	injector *inject.Injector
	logger   *log.Logger
}

// NewBlogAgent constructs the blog-agent façade.
func NewBlogAgent(svc *memory.Service, logger *log.Logger) *BlogAgent {
	return &BlogAgent{svc: svc, injector: inject.New(svc, logger), logger: logger}
}

// WrapPrompt injects blog-scoped memory into a generation prompt.
func (a *BlogAgent) WrapPrompt(ctx context.Context, prompt string, scope Scope) (inject.Result, error) {
	cfg := inject.DefaultConfig(types.SourceBlogAgent)
	cfg.Brand = scope.Brand
	cfg.Category = scope.Category
	cfg.Product = scope.Product
	return a.injector.WrapPrompt(ctx, prompt, cfg)
}

// RecordUsage reports generation success for previously injected ids.
func (a *BlogAgent) RecordUsage(ctx context.Context, ids []string, success bool) error {
	return a.injector.RecordUsage(ctx, ids, success, types.SourceBlogAgent)
}

// LeaveBrandInsight records something learned about a brand during
// research.
func (a *BlogAgent) LeaveBrandInsight(ctx context.Context, brand, title, content string) (types.MemoryEntry, error) {
	return a.svc.Add(ctx, types.AddInput{
		Type:         types.TypeBrandNote,
		Source:       types.SourceBlogAgent,
		Title:        title,
		Content:      content,
		TargetBrands: []string{brand},
		Priority:     types.PriorityMedium,
	})
}

// LeaveCategoryGuideline records a writing guideline for a category.
func (a *BlogAgent) LeaveCategoryGuideline(ctx context.Context, category, title, content string) (types.MemoryEntry, error) {
	return a.svc.Add(ctx, types.AddInput{
		Type:             types.TypeContentGuideline,
		Source:           types.SourceBlogAgent,
		Title:            title,
		Content:          content,
		TargetCategories: []string{category},
		Priority:         types.PriorityMedium,
	})
}

// FlagCompetitorToAvoid records a critical business rule forbidding
// mentions of a competitor inside the given brand's content.
func (a *BlogAgent) FlagCompetitorToAvoid(ctx context.Context, brand, competitor, reason string) (types.MemoryEntry, error) {
	content := fmt.Sprintf("Never mention or compare %s in %s content.", competitor, brand)
	if reason != "" {
		content += " " + reason
	}
	entry, err := a.svc.Add(ctx, types.AddInput{
		Type:         types.TypeBusinessRule,
		Source:       types.SourceBlogAgent,
		Title:        fmt.Sprintf("No %s comparisons", competitor),
		Content:      content,
		TargetBrands: []string{brand},
		Priority:     types.PriorityCritical,
	})
	if err == nil {
		a.logger.Info("competitor flagged", "brand", brand, "competitor", competitor, "id", entry.ID)
	}
	return entry, err
}

// LeaveProductInsight records something learned about a specific
// product.
func (a *BlogAgent) LeaveProductInsight(ctx context.Context, product, title, content string) (types.MemoryEntry, error) {
	return a.svc.Add(ctx, types.AddInput{
		Type:           types.TypeProductInsight,
		Source:         types.SourceBlogAgent,
		Title:          title,
		Content:        content,
		TargetProducts: []string{product},
		Priority:       types.PriorityMedium,
	})
}

// LeaveNoteForProductAgent records a free-form cross-agent note.
func (a *BlogAgent) LeaveNoteForProductAgent(ctx context.Context, title, content string, brands []string) (types.MemoryEntry, error) {
	return a.svc.Add(ctx, types.AddInput{
		Type:         types.TypeCrossAgentNote,
		Source:       types.SourceBlogAgent,
		Title:        title,
		Content:      content,
		TargetBrands: brands,
		Priority:     types.PriorityMedium,
	})
}

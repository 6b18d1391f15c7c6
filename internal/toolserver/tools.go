package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/toolline/agent-memory/internal/inject"
	"github.com/toolline/agent-memory/internal/memory"
	"github.com/toolline/agent-memory/pkg/types"
)

// toolHandler dispatches tools/call requests onto the memory service.
type toolHandler struct {
	svc      *memory.Service
	injector *inject.Injector
}

func newToolHandler(svc *memory.Service, logger *log.Logger) *toolHandler {
	return &toolHandler{svc: svc, injector: inject.New(svc, logger)}
}

func (h *toolHandler) call(ctx context.Context, params json.RawMessage) (map[string]any, error) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	switch p.Name {
	case "memory_add":
		var in types.AddInput
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_add arguments: %w", err)
		}
		entry, err := h.svc.Add(ctx, in)
		if err != nil {
			return nil, err
		}
		return toolSuccess(entry)
	case "memory_search":
		var in types.SearchInput
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_search arguments: %w", err)
		}
		results, err := h.svc.Search(ctx, in)
		if err != nil {
			return nil, err
		}
		return toolSuccess(results)
	case "memory_get":
		var in struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_get arguments: %w", err)
		}
		entry, found, err := h.svc.Get(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("memory %s not found", in.ID)
		}
		return toolSuccess(entry)
	case "memory_update":
		var in struct {
			ID string `json:"id"`
			types.UpdateInput
		}
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_update arguments: %w", err)
		}
		entry, found, err := h.svc.Update(ctx, in.ID, in.UpdateInput)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("memory %s not found", in.ID)
		}
		return toolSuccess(entry)
	case "memory_delete":
		var in struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_delete arguments: %w", err)
		}
		removed, err := h.svc.Delete(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		return toolSuccess(map[string]any{"deleted": removed})
	case "memory_stats":
		stats, err := h.svc.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return toolSuccess(stats)
	case "memory_feedback":
		var in struct {
			ID     string             `json:"id"`
			Type   types.FeedbackType `json:"type"`
			Reason string             `json:"reason,omitempty"`
			Agent  types.AgentSource  `json:"agent"`
		}
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_feedback arguments: %w", err)
		}
		var found bool
		var err error
		if in.Type == types.FeedbackUseful {
			found, err = h.svc.MarkUseful(ctx, in.ID, in.Agent)
		} else {
			found, err = h.svc.MarkProblematic(ctx, in.ID, in.Type, in.Reason, in.Agent)
		}
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("memory %s not found", in.ID)
		}
		return toolSuccess(map[string]any{"recorded": true})
	case "memory_wrap_prompt":
		var in struct {
			Prompt string `json:"prompt"`
			inject.Config
		}
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_wrap_prompt arguments: %w", err)
		}
		result, err := h.injector.WrapPrompt(ctx, in.Prompt, in.Config)
		if err != nil {
			return nil, err
		}
		return toolSuccess(result)
	case "memory_maintenance":
		var in types.MaintenanceOptions
		if len(p.Arguments) > 0 {
			if err := json.Unmarshal(p.Arguments, &in); err != nil {
				return nil, fmt.Errorf("invalid memory_maintenance arguments: %w", err)
			}
		}
		report, err := h.svc.RunFullMaintenance(ctx, in)
		if err != nil {
			return nil, err
		}
		return toolSuccess(report)
	case "memory_health":
		report, err := h.svc.HealthReport(ctx)
		if err != nil {
			return nil, err
		}
		return toolSuccess(report)
	default:
		return nil, fmt.Errorf("unknown tool %q", p.Name)
	}
}

func toolSuccess(v any) (map[string]any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"content":           []map[string]any{{"type": "text", "text": string(b)}},
		"structuredContent": v,
		"isError":           false,
	}, nil
}

// ToolDefinition models tool metadata for tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "memory_add",
			Description: "Store a new shared memory entry.",
			InputSchema: jsonSchema(map[string]any{
				"type":              propStringEnum("Memory type.", []string{"business_rule", "brand_note", "product_insight", "content_guideline", "cross_agent_note", "verified_fact", "template"}),
				"source":            propStringEnum("Authoring agent.", []string{"product_agent", "blog_agent", "admin", "system"}),
				"title":             propString("Entry title, the primary ranking signal."),
				"content":           propString("Entry body."),
				"target_brands":     propStringArray("Brands this entry applies to; empty means all."),
				"target_categories": propStringArray("Categories this entry applies to; empty means all."),
				"target_products":   propStringArray("Products this entry applies to; empty means all."),
				"priority":          propStringEnum("Priority level.", []string{"critical", "high", "medium", "low"}),
				"keywords":          propStringArray("Optional keywords; auto-extracted when omitted."),
			}, []string{"type", "title", "content"}),
		},
		{
			Name:        "memory_search",
			Description: "Search memory by relevance. Returned entries count as used.",
			InputSchema: jsonSchema(map[string]any{
				"query":           propString("Free-text query."),
				"keywords":        propStringArray("Extra search terms."),
				"types":           propStringArray("Type filter."),
				"source":          propString("Only entries from this agent."),
				"exclude_source":  propString("Drop entries from this agent."),
				"brand":           propString("Brand scope filter."),
				"category":        propString("Category scope filter."),
				"product":         propString("Product scope filter."),
				"min_priority":    propString("Priority floor."),
				"include_expired": propBoolean("Include logically dead entries."),
				"limit":           propNumber("Maximum results."),
			}, nil),
		},
		{
			Name:        "memory_get",
			Description: "Fetch one entry by id without affecting usage counters.",
			InputSchema: jsonSchema(map[string]any{"id": propString("Entry id.")}, []string{"id"}),
		},
		{
			Name:        "memory_update",
			Description: "Partially update an entry; keywords regenerate when text changes.",
			InputSchema: jsonSchema(map[string]any{
				"id":       propString("Entry id."),
				"title":    propString("New title."),
				"content":  propString("New content."),
				"priority": propString("New priority."),
				"keywords": propStringArray("Replacement keywords."),
			}, []string{"id"}),
		},
		{
			Name:        "memory_delete",
			Description: "Delete an entry by id.",
			InputSchema: jsonSchema(map[string]any{"id": propString("Entry id.")}, []string{"id"}),
		},
		{
			Name:        "memory_stats",
			Description: "Aggregate counts by type, source and priority.",
			InputSchema: jsonSchema(map[string]any{}, nil),
		},
		{
			Name:        "memory_feedback",
			Description: "Report an entry as useful, not_useful, outdated or incorrect.",
			InputSchema: jsonSchema(map[string]any{
				"id":     propString("Entry id."),
				"type":   propStringEnum("Feedback type.", []string{"useful", "not_useful", "outdated", "incorrect"}),
				"reason": propString("Optional free-text reason."),
				"agent":  propString("Reporting agent."),
			}, []string{"id", "type"}),
		},
		{
			Name:        "memory_wrap_prompt",
			Description: "Prepend filtered, summarized memory context to a prompt.",
			InputSchema: jsonSchema(map[string]any{
				"prompt":       propString("Prompt to wrap."),
				"agent_source": propString("Calling agent; its own entries are excluded."),
				"brand":        propString("Brand scope."),
				"category":     propString("Category scope."),
				"product":      propString("Product scope."),
			}, []string{"prompt"}),
		},
		{
			Name:        "memory_maintenance",
			Description: "Run the full maintenance cycle: expire, decay, cleanup, consolidate.",
			InputSchema: jsonSchema(map[string]any{
				"auto_consolidate": propBoolean("Execute merges instead of only reporting clusters."),
				"dry_run":          propBoolean("Simulate without persisting."),
			}, nil),
		},
		{
			Name:        "memory_health",
			Description: "Store health report with issues and suggested remediations.",
			InputSchema: jsonSchema(map[string]any{}, nil),
		},
	}
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propStringEnum(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func propStringArray(description string) map[string]any {
	return map[string]any{"type": "array", "description": description, "items": map[string]any{"type": "string"}}
}

func propNumber(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func propBoolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

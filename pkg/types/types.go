// Package types defines the shared data model for the agent memory store.
package types

import "time"

// MemoryType classifies what kind of knowledge an entry carries.
type MemoryType string

const (
	TypeBusinessRule     MemoryType = "business_rule"
	TypeBrandNote        MemoryType = "brand_note"
	TypeProductInsight   MemoryType = "product_insight"
	TypeContentGuideline MemoryType = "content_guideline"
	TypeCrossAgentNote   MemoryType = "cross_agent_note"
	TypeVerifiedFact     MemoryType = "verified_fact"
	TypeTemplate         MemoryType = "template"
)

// AgentSource identifies who authored an entry or feedback event.
type AgentSource string

const (
	SourceProductAgent AgentSource = "product_agent"
	SourceBlogAgent    AgentSource = "blog_agent"
	SourceAdmin        AgentSource = "admin"
	SourceSystem       AgentSource = "system"
)

// Priority is an ordinal level. It only moves down under decay and up
// under positive-feedback promotion; critical is exempt from both.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the ordinal position, critical=4 down to low=1.
// Unknown priorities rank as medium.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// StepDown returns the next priority down, with low as the floor.
func (p Priority) StepDown() Priority {
	switch p {
	case PriorityCritical:
		return PriorityHigh
	case PriorityHigh:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// StepUp returns the next priority up. Promotion tops out at high;
// critical is never produced automatically.
func (p Priority) StepUp() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return p
	}
}

// MemoryEntry is one unit of shared knowledge.
type MemoryEntry struct {
	ID               string      `json:"id"`
	Type             MemoryType  `json:"type"`
	Source           AgentSource `json:"source"`
	Title            string      `json:"title"`
	Content          string      `json:"content"`
	TargetBrands     []string    `json:"target_brands,omitempty"`
	TargetCategories []string    `json:"target_categories,omitempty"`
	TargetProducts   []string    `json:"target_products,omitempty"`
	Priority         Priority    `json:"priority"`
	Keywords         []string    `json:"keywords,omitempty"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	UsageCount       int         `json:"usage_count"`
	LastUsedAt       *time.Time  `json:"last_used_at,omitempty"`
}

// Expired reports whether the entry is logically dead at the given time.
func (e MemoryEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// HasTargetScope reports whether at least one target dimension is set.
func (e MemoryEntry) HasTargetScope() bool {
	return len(e.TargetBrands) > 0 || len(e.TargetCategories) > 0 || len(e.TargetProducts) > 0
}

// FeedbackType classifies a feedback event.
type FeedbackType string

const (
	FeedbackUseful    FeedbackType = "useful"
	FeedbackNotUseful FeedbackType = "not_useful"
	FeedbackOutdated  FeedbackType = "outdated"
	FeedbackIncorrect FeedbackType = "incorrect"
)

// Negative reports whether the feedback counts against the entry.
func (f FeedbackType) Negative() bool {
	return f == FeedbackNotUseful || f == FeedbackOutdated || f == FeedbackIncorrect
}

// MemoryFeedback is an append-only event linking an entry to a report.
type MemoryFeedback struct {
	ID        string       `json:"id"`
	MemoryID  string       `json:"memory_id"`
	Type      FeedbackType `json:"type"`
	Reason    string       `json:"reason,omitempty"`
	Agent     AgentSource  `json:"agent"`
	CreatedAt time.Time    `json:"created_at"`
}

// DocumentVersion tags the persisted document schema.
const DocumentVersion = "1.0"

// MemoryDocument is the single versioned document held by the store.
type MemoryDocument struct {
	Version     string           `json:"version"`
	LastUpdated time.Time        `json:"last_updated"`
	Entries     []MemoryEntry    `json:"entries"`
	Feedback    []MemoryFeedback `json:"feedback"`
}

// EmptyDocument returns a fresh valid document.
func EmptyDocument() MemoryDocument {
	return MemoryDocument{
		Version:  DocumentVersion,
		Entries:  []MemoryEntry{},
		Feedback: []MemoryFeedback{},
	}
}

// AddInput describes a new entry. Keywords are auto-extracted from
// title and content when none are supplied.
type AddInput struct {
	Type             MemoryType  `json:"type"`
	Source           AgentSource `json:"source"`
	Title            string      `json:"title"`
	Content          string      `json:"content"`
	TargetBrands     []string    `json:"target_brands,omitempty"`
	TargetCategories []string    `json:"target_categories,omitempty"`
	TargetProducts   []string    `json:"target_products,omitempty"`
	Priority         Priority    `json:"priority,omitempty"`
	Keywords         []string    `json:"keywords,omitempty"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
}

// UpdateInput carries a partial mutation; nil fields are left untouched.
// Keywords are regenerated when title or content change and the caller
// did not supply replacements.
type UpdateInput struct {
	Title            *string    `json:"title,omitempty"`
	Content          *string    `json:"content,omitempty"`
	TargetBrands     *[]string  `json:"target_brands,omitempty"`
	TargetCategories *[]string  `json:"target_categories,omitempty"`
	TargetProducts   *[]string  `json:"target_products,omitempty"`
	Priority         *Priority  `json:"priority,omitempty"`
	Keywords         *[]string  `json:"keywords,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ClearExpiry      bool       `json:"clear_expiry,omitempty"`
}

// SearchInput selects and ranks entries. Search has a write side
// effect: usage counters are bumped on every entry actually returned.
type SearchInput struct {
	Query          string       `json:"query,omitempty"`
	Keywords       []string     `json:"keywords,omitempty"`
	Types          []MemoryType `json:"types,omitempty"`
	Source         AgentSource  `json:"source,omitempty"`
	ExcludeSource  AgentSource  `json:"exclude_source,omitempty"`
	Brand          string       `json:"brand,omitempty"`
	Category       string       `json:"category,omitempty"`
	Product        string       `json:"product,omitempty"`
	MinPriority    Priority     `json:"min_priority,omitempty"`
	IncludeExpired bool         `json:"include_expired,omitempty"`
	Limit          int          `json:"limit,omitempty"`
}

// SearchResult pairs an entry with its relevance score.
type SearchResult struct {
	Entry MemoryEntry `json:"entry"`
	Score float64     `json:"score"`
}

// MemoryStats aggregates store counters.
type MemoryStats struct {
	Total      int                 `json:"total"`
	ByType     map[MemoryType]int  `json:"by_type"`
	BySource   map[AgentSource]int `json:"by_source"`
	ByPriority map[Priority]int    `json:"by_priority"`
	Expired    int                 `json:"expired"`
}

// Recommendation is the lifecycle advice derived from a quality score.
type Recommendation string

const (
	RecommendKeep    Recommendation = "keep"
	RecommendReview  Recommendation = "review"
	RecommendArchive Recommendation = "archive"
	RecommendDelete  Recommendation = "delete"
)

// QualityScore is computed on demand, never stored.
type QualityScore struct {
	Recency        float64        `json:"recency"`
	Usage          float64        `json:"usage"`
	Feedback       float64        `json:"feedback"`
	Completeness   float64        `json:"completeness"`
	Overall        float64        `json:"overall"`
	Recommendation Recommendation `json:"recommendation"`
}

// DecayOptions tunes a decay sweep.
type DecayOptions struct {
	DaysUntilDecay   int  `json:"days_until_decay"`
	DaysUntilArchive int  `json:"days_until_archive"`
	ProtectCritical  bool `json:"protect_critical"`
}

// DefaultDecayOptions mirrors the scheduled sweep defaults.
func DefaultDecayOptions() DecayOptions {
	return DecayOptions{DaysUntilDecay: 30, DaysUntilArchive: 90, ProtectCritical: true}
}

// DecayResult reports what one sweep did.
type DecayResult struct {
	Decayed   int `json:"decayed"`
	Archived  int `json:"archived"`
	Unchanged int `json:"unchanged"`
}

// ConsolidationCluster is a group of near-duplicate entries. The first
// member is the designated survivor.
type ConsolidationCluster struct {
	Entries    []MemoryEntry `json:"entries"`
	Similarity float64       `json:"similarity"`
}

// MaintenanceAction is one step in a maintenance run's action log.
type MaintenanceAction struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
	Count  int    `json:"count"`
}

// MaintenanceOptions tunes a full maintenance cycle.
type MaintenanceOptions struct {
	AutoConsolidate bool `json:"auto_consolidate"`
	DryRun          bool `json:"dry_run"`
}

// MaintenanceReport summarizes a full maintenance cycle.
type MaintenanceReport struct {
	DryRun            bool                `json:"dry_run"`
	ExpiredRemoved    int                 `json:"expired_removed"`
	Decay             DecayResult         `json:"decay"`
	LowQualityRemoved int                 `json:"low_quality_removed"`
	ClustersFound     int                 `json:"clusters_found"`
	ClustersMerged    int                 `json:"clusters_merged"`
	Actions           []MaintenanceAction `json:"actions"`
}

// HealthStatus grades the store.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// HealthIssue is one detected problem with a suggested remediation.
type HealthIssue struct {
	Severity   HealthStatus `json:"severity"`
	Issue      string       `json:"issue"`
	Suggestion string       `json:"suggestion"`
}

// HealthReport is the store's self-assessment.
type HealthReport struct {
	Status     HealthStatus  `json:"status"`
	Total      int           `json:"total"`
	Expired    int           `json:"expired"`
	LowQuality int           `json:"low_quality"`
	Duplicates int           `json:"duplicates"`
	Issues     []HealthIssue `json:"issues"`
}

// Package store provides whole-document persistence for the memory
// subsystem. Every backend satisfies the same narrow contract: load the
// full versioned document, save the full versioned document. The memory
// layer is advisory, so backends favor availability: an unreadable
// store loads as an empty document instead of failing.
package store

import (
	"context"
	"time"

	"github.com/toolline/agent-memory/pkg/types"
)

// Store is the persistence port for the shared memory document.
type Store interface {
	// Load returns the current document. A missing or unreadable
	// backing resource yields a valid empty document, not an error.
	Load(ctx context.Context) (types.MemoryDocument, error)
	// Save replaces the whole document, stamping LastUpdated first.
	Save(ctx context.Context, doc types.MemoryDocument) error
	Close() error
}

// ToolRequestLog captures one tool-server request for observability.
type ToolRequestLog struct {
	ID         int64
	Method     string
	ToolName   string
	Success    bool
	ErrorText  string
	DurationMS int64
	CreatedAt  time.Time
}

// RecentEntry is a compact entry row for admin dashboards.
type RecentEntry struct {
	ID        string
	Type      string
	Source    string
	Title     string
	Priority  string
	CreatedAt time.Time
}

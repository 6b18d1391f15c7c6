// Package admin is a local terminal dashboard over the memory store:
// live stats, health report, recent entries and recent tool requests.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/toolline/agent-memory/internal/store"
	"github.com/toolline/agent-memory/pkg/types"
)

type tickMsg time.Time

type dashboardMsg struct {
	stats    types.MemoryStats
	health   types.HealthReport
	reqLogs  []store.ToolRequestLog
	entries  []store.RecentEntry
	err      error
	duration time.Duration
}

// Reporter is the slice of the memory service the dashboard reads.
type Reporter interface {
	Stats(ctx context.Context) (types.MemoryStats, error)
	HealthReport(ctx context.Context) (types.HealthReport, error)
}

// ActivitySource provides recent rows; nil when the backend keeps none.
type ActivitySource interface {
	RecentToolRequestLogs(ctx context.Context, limit int) ([]store.ToolRequestLog, error)
	RecentEntries(ctx context.Context, limit int) ([]store.RecentEntry, error)
}

type model struct {
	ctx      context.Context
	reporter Reporter
	activity ActivitySource

	stats     types.MemoryStats
	health    types.HealthReport
	reqLogs   []store.ToolRequestLog
	entries   []store.RecentEntry
	lastErr   error
	lastTick  time.Time
	lastFetch time.Duration
	width     int
	height    int
}

// Run starts the dashboard and blocks until quit.
func Run(ctx context.Context, reporter Reporter, activity ActivitySource) error {
	m := model{ctx: ctx, reporter: reporter, activity: activity}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.ctx, m.reporter, m.activity), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.lastTick = time.Time(msg)
		return m, tea.Batch(fetchCmd(m.ctx, m.reporter, m.activity), tickCmd())
	case dashboardMsg:
		m.lastErr = msg.err
		m.lastFetch = msg.duration
		if msg.err == nil {
			m.stats = msg.stats
			m.health = msg.health
			m.reqLogs = msg.reqLogs
			m.entries = msg.entries
		}
	}
	return m, nil
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")).Render("agent-memory admin")
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("q to quit • refresh every 2s")

	paneWidth := 54
	if m.width > 0 {
		paneWidth = max(38, (m.width-3)/2)
	}
	paneHeight := 10
	if m.height > 0 {
		paneHeight = max(8, (m.height-8)/2)
	}

	topRow := joinColumns(
		renderPane("Stats", m.renderStats(), paneWidth, paneHeight),
		renderPane("Health", renderHealth(m.health), paneWidth, paneHeight),
	)
	bottomRow := joinColumns(
		renderPane("Tool Requests", renderRequestPane(m.reqLogs), paneWidth, paneHeight),
		renderPane("Recent Entries", renderEntriesPane(m.entries), paneWidth, paneHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, meta, "", topRow, bottomRow)
}

func (m model) renderStats() string {
	byPriority := func(p types.Priority) int { return m.stats.ByPriority[p] }
	body := fmt.Sprintf(
		"Total entries:  %d\nCritical:       %d\nHigh:           %d\nMedium:         %d\nLow:            %d\nExpired (now):  %d\nLast refresh:   %s\nFetch time:     %dms",
		m.stats.Total,
		byPriority(types.PriorityCritical),
		byPriority(types.PriorityHigh),
		byPriority(types.PriorityMedium),
		byPriority(types.PriorityLow),
		m.stats.Expired,
		formatTime(m.lastTick),
		m.lastFetch.Milliseconds(),
	)
	if m.lastErr != nil {
		body += "\n\nLast error: " + truncateText(compactWhitespace(m.lastErr.Error()), 120)
	}
	return body
}

func renderHealth(h types.HealthReport) string {
	if h.Status == "" {
		return "(no health data yet)"
	}
	lines := []string{
		fmt.Sprintf("Status:      %s", strings.ToUpper(string(h.Status))),
		fmt.Sprintf("Low quality: %d", h.LowQuality),
		fmt.Sprintf("Duplicates:  %d", h.Duplicates),
	}
	for _, issue := range h.Issues {
		lines = append(lines, fmt.Sprintf("! %s", truncateText(issue.Issue, 60)))
		lines = append(lines, fmt.Sprintf("  -> %s", truncateText(issue.Suggestion, 58)))
	}
	return strings.Join(lines, "\n")
}

func fetchCmd(ctx context.Context, reporter Reporter, activity ActivitySource) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		stats, err := reporter.Stats(ctx)
		if err != nil {
			return dashboardMsg{err: err, duration: time.Since(start)}
		}
		health, err := reporter.HealthReport(ctx)
		if err != nil {
			return dashboardMsg{stats: stats, err: err, duration: time.Since(start)}
		}

		msg := dashboardMsg{stats: stats, health: health, duration: time.Since(start)}
		if activity != nil {
			if reqLogs, err := activity.RecentToolRequestLogs(ctx, 8); err == nil {
				msg.reqLogs = reqLogs
			}
			if entries, err := activity.RecentEntries(ctx, 8); err == nil {
				msg.entries = entries
			}
		}
		return msg
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func renderPane(title, body string, width, height int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(title + "\n\n" + body)
}

func joinColumns(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func renderRequestPane(rows []store.ToolRequestLog) string {
	if len(rows) == 0 {
		return "(no tool requests yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		method := strings.TrimSpace(row.Method)
		if row.ToolName != "" {
			method += ":" + strings.TrimSpace(row.ToolName)
		}
		status := "ok"
		if !row.Success {
			status = "err"
		}
		line := fmt.Sprintf(
			"[%s] %-3s %-24s %4dms",
			formatClock(row.CreatedAt),
			status,
			truncateText(method, 24),
			max(0, row.DurationMS),
		)
		if !row.Success && strings.TrimSpace(row.ErrorText) != "" {
			line += " " + truncateText(compactWhitespace(row.ErrorText), 52)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderEntriesPane(rows []store.RecentEntry) string {
	if len(rows) == 0 {
		return "(no entries yet)"
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf(
			"[%s] %-8s %-16s :: %s",
			formatClock(row.CreatedAt),
			truncateText(row.Priority, 8),
			truncateText(row.Type, 16),
			truncateText(compactWhitespace(row.Title), 40),
		))
	}
	return strings.Join(lines, "\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.UTC().Format("15:04:05")
}

func truncateText(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

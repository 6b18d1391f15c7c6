package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/toolline/agent-memory/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps the memory document in a SQLite database. Load and
// Save still move the whole document; SQLite buys durability and the
// request-log tables used by the admin dashboard, not row-level access.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens and initializes the SQLite store.
func OpenSQLite(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	for _, stmt := range splitSQLStatements(schemaSQL) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run schema stmt: %w", err)
		}
	}
	return nil
}

func splitSQLStatements(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+";")
	}
	return out
}

// Load reads the full document. Malformed rows are skipped with a
// warning so one bad record cannot take the whole store down.
func (s *SQLiteStore) Load(ctx context.Context) (types.MemoryDocument, error) {
	doc := types.EmptyDocument()

	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version)
	if err == nil && version != "" {
		doc.Version = version
	}
	var lastUpdated string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_updated'`).Scan(&lastUpdated); err == nil {
		if ts, perr := time.Parse(time.RFC3339Nano, lastUpdated); perr == nil {
			doc.LastUpdated = ts
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, source, title, content,
		target_brands, target_categories, target_products, priority, keywords,
		expires_at, created_at, updated_at, usage_count, last_used_at
	FROM entries ORDER BY created_at ASC`)
	if err != nil {
		s.logger.Warn("load entries failed; treating store as empty", "error", err)
		return types.EmptyDocument(), nil
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntryRow(rows)
		if err != nil {
			s.logger.Warn("skipping malformed entry row", "error", err)
			continue
		}
		doc.Entries = append(doc.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return doc, fmt.Errorf("iterate entries: %w", err)
	}

	fbRows, err := s.db.QueryContext(ctx, `SELECT id, memory_id, type, reason, agent, created_at
	FROM feedback ORDER BY created_at ASC`)
	if err != nil {
		s.logger.Warn("load feedback failed; continuing without history", "error", err)
		return doc, nil
	}
	defer fbRows.Close()

	for fbRows.Next() {
		var (
			fb        types.MemoryFeedback
			ft, agent string
			createdAt string
		)
		if err := fbRows.Scan(&fb.ID, &fb.MemoryID, &ft, &fb.Reason, &agent, &createdAt); err != nil {
			s.logger.Warn("skipping malformed feedback row", "error", err)
			continue
		}
		fb.Type = types.FeedbackType(ft)
		fb.Agent = types.AgentSource(agent)
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			fb.CreatedAt = ts
		}
		doc.Feedback = append(doc.Feedback, fb)
	}
	return doc, fbRows.Err()
}

// Save replaces the whole document in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, doc types.MemoryDocument) error {
	doc.LastUpdated = time.Now().UTC()
	if doc.Version == "" {
		doc.Version = types.DocumentVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM feedback`); err != nil {
		return fmt.Errorf("clear feedback: %w", err)
	}

	for _, e := range doc.Entries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	for _, fb := range doc.Feedback {
		if _, err := tx.ExecContext(ctx, `INSERT INTO feedback (id, memory_id, type, reason, agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
			fb.ID, fb.MemoryID, string(fb.Type), fb.Reason, string(fb.Agent),
			fb.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
	}

	for key, value := range map[string]string{
		"version":      doc.Version,
		"last_updated": doc.LastUpdated.Format(time.RFC3339Nano),
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e types.MemoryEntry) error {
	brands, _ := json.Marshal(stringsOrEmpty(e.TargetBrands))
	categories, _ := json.Marshal(stringsOrEmpty(e.TargetCategories))
	products, _ := json.Marshal(stringsOrEmpty(e.TargetProducts))
	keywords, _ := json.Marshal(stringsOrEmpty(e.Keywords))

	expiresAt := sql.NullString{}
	if e.ExpiresAt != nil {
		expiresAt = sql.NullString{String: e.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	lastUsedAt := sql.NullString{}
	if e.LastUsedAt != nil {
		lastUsedAt = sql.NullString{String: e.LastUsedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO entries (
		id, type, source, title, content,
		target_brands, target_categories, target_products, priority, keywords,
		expires_at, created_at, updated_at, usage_count, last_used_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), string(e.Source), e.Title, e.Content,
		string(brands), string(categories), string(products), string(e.Priority), string(keywords),
		expiresAt,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		e.UsageCount,
		lastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(sc scanner) (types.MemoryEntry, error) {
	var (
		e                            types.MemoryEntry
		entryType, source, priority  string
		brands, categories, products string
		keywords                     string
		expiresAt, lastUsedAt        sql.NullString
		createdAt, updatedAt         string
	)
	if err := sc.Scan(
		&e.ID, &entryType, &source, &e.Title, &e.Content,
		&brands, &categories, &products, &priority, &keywords,
		&expiresAt, &createdAt, &updatedAt, &e.UsageCount, &lastUsedAt,
	); err != nil {
		return e, err
	}

	e.Type = types.MemoryType(entryType)
	e.Source = types.AgentSource(source)
	e.Priority = types.Priority(priority)

	if err := json.Unmarshal([]byte(brands), &e.TargetBrands); err != nil {
		e.TargetBrands = nil
	}
	if err := json.Unmarshal([]byte(categories), &e.TargetCategories); err != nil {
		e.TargetCategories = nil
	}
	if err := json.Unmarshal([]byte(products), &e.TargetProducts); err != nil {
		e.TargetProducts = nil
	}
	if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
		e.Keywords = nil
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return e, err
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return e, err
	}
	e.CreatedAt = created
	e.UpdatedAt = updated

	if expiresAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, expiresAt.String); perr == nil {
			e.ExpiresAt = &t
		}
	}
	if lastUsedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, lastUsedAt.String); perr == nil {
			e.LastUsedAt = &t
		}
	}
	return e, nil
}

// InsertToolRequestLog stores one request event for admin observability.
func (s *SQLiteStore) InsertToolRequestLog(ctx context.Context, rec ToolRequestLog) error {
	ts := rec.CreatedAt.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tool_requests (
		method, tool_name, success, error_text, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(rec.Method),
		strings.TrimSpace(rec.ToolName),
		success,
		strings.TrimSpace(rec.ErrorText),
		rec.DurationMS,
		ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert tool request log: %w", err)
	}
	return nil
}

// RecentToolRequestLogs returns recent request events, newest first.
func (s *SQLiteStore) RecentToolRequestLogs(ctx context.Context, limit int) ([]ToolRequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, tool_name, success, error_text, duration_ms, created_at
FROM tool_requests
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tool request logs: %w", err)
	}
	defer rows.Close()

	items := make([]ToolRequestLog, 0, limit)
	for rows.Next() {
		var (
			row          ToolRequestLog
			successAsInt int
			createdAt    string
		)
		if err := rows.Scan(&row.ID, &row.Method, &row.ToolName, &successAsInt, &row.ErrorText, &row.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tool request log: %w", err)
		}
		row.Success = successAsInt == 1
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

// RecentEntries returns compact entry rows, newest first.
func (s *SQLiteStore) RecentEntries(ctx context.Context, limit int) ([]RecentEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, source, title, priority, created_at
FROM entries
ORDER BY created_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer rows.Close()

	items := make([]RecentEntry, 0, limit)
	for rows.Next() {
		var (
			row       RecentEntry
			createdAt string
		)
		if err := rows.Scan(&row.ID, &row.Type, &row.Source, &row.Title, &row.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recent entry: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			row.CreatedAt = ts
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package msty

import (
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// DB is a read-only handle on the administered application's SQLite
// database. The connection uses sqlite's read-only URI mode, so writes are
// rejected by the engine itself, not just by convention.
type DB struct {
	db   *sql.DB
	path string
}

// OpenReadOnly opens the application database at path in read-only mode.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("application database not found: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open application db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping application db: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Close closes the handle.
func (d *DB) Close() error { return d.db.Close() }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Tables lists table names in sorted order.
func (d *DB) Tables() ([]string, error) {
	rows, err := d.db.Query(
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RowCount returns the row count of one table. The table name is validated
// as an identifier because it cannot be bound as a parameter.
func (d *DB) RowCount(table string) (int, error) {
	if !identRe.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Stats is the rollup of the application database contents.
type Stats struct {
	Conversations   int      `json:"total_conversations"`
	Messages        int      `json:"total_messages"`
	Personas        int      `json:"total_personas"`
	Prompts         int      `json:"total_prompts"`
	KnowledgeStacks int      `json:"total_knowledge_stacks"`
	Tools           int      `json:"total_tools"`
	SizeMB          float64  `json:"database_size_mb"`
	Tables          []string `json:"tables"`
}

// tableStatMap matches table-name substrings to stat buckets. The app's
// schema has shifted names between releases, so matching is fuzzy.
var tableStatMap = []struct {
	pattern string
	bucket  func(*Stats, int)
}{
	{"chat_session", func(s *Stats, n int) { s.Conversations += n }},
	{"conversation", func(s *Stats, n int) { s.Conversations += n }},
	{"message", func(s *Stats, n int) { s.Messages += n }},
	{"persona", func(s *Stats, n int) { s.Personas += n }},
	{"prompt", func(s *Stats, n int) { s.Prompts += n }},
	{"knowledge_stack", func(s *Stats, n int) { s.KnowledgeStacks += n }},
	{"tool", func(s *Stats, n int) { s.Tools += n }},
}

// CollectStats counts rows across the known table families.
func (d *DB) CollectStats() (*Stats, error) {
	tables, err := d.Tables()
	if err != nil {
		return nil, err
	}
	stats := &Stats{Tables: tables}
	for _, table := range tables {
		lower := strings.ToLower(table)
		for _, m := range tableStatMap {
			if strings.Contains(lower, m.pattern) {
				n, err := d.RowCount(table)
				if err != nil {
					return nil, err
				}
				m.bucket(stats, n)
				break
			}
		}
	}
	if info, err := os.Stat(d.path); err == nil {
		stats.SizeMB = float64(info.Size()) / (1024 * 1024)
	}
	return stats, nil
}

var secretKeyRe = regexp.MustCompile(`(?i)key|secret|token|password`)

// Rows returns up to limit rows from one table as generic maps, with any
// column that looks like a credential redacted.
func (d *DB) Rows(table string, limit int) ([]map[string]any, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query("SELECT * FROM "+table+" LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if secretKeyRe.MatchString(col) && v != nil {
				v = "[REDACTED]"
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FindTable returns the first table whose name contains any of the given
// substrings, in table-sorted order. Empty result means none matched.
func (d *DB) FindTable(substrings ...string) (string, error) {
	tables, err := d.Tables()
	if err != nil {
		return "", err
	}
	for _, table := range tables {
		lower := strings.ToLower(table)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return table, nil
			}
		}
	}
	return "", nil
}

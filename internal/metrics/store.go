package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Mode is the entry point an invocation came through.
type Mode string

const (
	ModeSearch Mode = "search"
	ModeAsk    Mode = "ask"
	ModeChat   Mode = "chat"
	ModeMCP    Mode = "mcp"
)

// AllModes lists every tracked mode in display order.
var AllModes = []Mode{ModeSearch, ModeAsk, ModeChat, ModeMCP}

const dateLayout = "2006-01-02"

// DailyCount is the number of invocations of one mode on one day.
type DailyCount struct {
	Date  string `json:"date" yaml:"date"`
	Mode  Mode   `json:"mode" yaml:"mode"`
	Count int64  `json:"count" yaml:"count"`
}

// Store persists per-day invocation counts in SQLite.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.legalrag/usage.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".legalrag", "usage.db"), nil
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single connection: concurrent MCP calls share one writer
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS invocation_counts (
			mode TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER DEFAULT 0,
			PRIMARY KEY (mode, date)
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Increment adds one invocation of mode on the day of at.
func (s *Store) Increment(ctx context.Context, mode Mode, at time.Time) error {
	upsertSQL := `
		INSERT INTO invocation_counts (mode, date, count)
		VALUES (?, ?, 1)
		ON CONFLICT(mode, date) DO UPDATE SET count = count + 1;
	`
	if _, err := s.db.ExecContext(ctx, upsertSQL, string(mode), at.Format(dateLayout)); err != nil {
		return fmt.Errorf("failed to increment count: %w", err)
	}
	return nil
}

// Totals returns cumulative counts for every mode, zero-filled.
func (s *Store) Totals(ctx context.Context) (map[Mode]int64, error) {
	result := make(map[Mode]int64, len(AllModes))
	for _, mode := range AllModes {
		result[mode] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT mode, COALESCE(SUM(count), 0) FROM invocation_counts GROUP BY mode",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode string
		var total int64
		if err := rows.Scan(&mode, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[Mode(mode)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

// Since returns daily counts from the day of from onwards, oldest first.
func (s *Store) Since(ctx context.Context, from time.Time) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, mode, count FROM invocation_counts WHERE date >= ? ORDER BY date, mode",
		from.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	var counts []DailyCount
	for rows.Next() {
		var entry DailyCount
		var mode string
		if err := rows.Scan(&entry.Date, &mode, &entry.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entry.Mode = Mode(mode)
		counts = append(counts, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return counts, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/pkg/serialization"
	_ "modernc.org/sqlite"
)

// HistorySaver implements history.Saver for SQLite. Filterable columns are
// stored alongside the serialized run so List can push filters into SQL.
type HistorySaver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// NewHistorySaver creates a new SQLite history saver
func NewHistorySaver(db *sql.DB, serializer *serialization.Serializer) *HistorySaver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &HistorySaver{
		db:         db,
		serializer: serializer,
		tableName:  "runs",
	}
}

// Open opens (or creates) a SQLite file and prepares the table
func Open(ctx context.Context, path string, serializer *serialization.Serializer) (*HistorySaver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	s := NewHistorySaver(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// WithTableName allows overriding the default table name with validation.
// Only alphanumeric and underscore are permitted to prevent SQL injection via identifiers.
func (s *HistorySaver) WithTableName(name string) *HistorySaver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Save stores a run, replacing one with the same ID
func (s *HistorySaver) Save(ctx context.Context, run *history.Run) error {
	if run == nil {
		return history.ErrInvalidRunID
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(run)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, graph_name, status, started_at, ended_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.tableName)
	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.GraphName, string(run.Status), run.StartedAt.UnixNano(), run.EndedAt.UnixNano(), data)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a run by ID
func (s *HistorySaver) Load(ctx context.Context, id string) (*history.Run, error) {
	if id == "" {
		return nil, history.ErrInvalidRunID
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", s.tableName)

	var data []byte
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, history.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return s.decode(data)
}

// List retrieves runs based on filter criteria, newest first
func (s *HistorySaver) List(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*history.Run{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run by ID
func (s *HistorySaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRunID
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return history.ErrRunNotFound
	}
	return nil
}

// CreateTables creates the necessary database tables
func (s *HistorySaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			graph_name TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_graph_name ON %[1]s (graph_name);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_started_at ON %[1]s (started_at);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing runs
func (s *HistorySaver) buildListQuery(filter history.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0, 6)

	if filter.GraphName != "" {
		query += " AND graph_name = ?"
		args = append(args, filter.GraphName)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND started_at < ?"
		args = append(args, filter.Before.UnixNano())
	}

	query += " ORDER BY started_at DESC, id ASC"

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}
	return query, args
}

func (s *HistorySaver) decode(data []byte) (*history.Run, error) {
	var run history.Run
	if err := s.serializer.Deserialize(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	if !run.StartedAt.IsZero() {
		run.StartedAt = run.StartedAt.In(time.UTC)
		run.EndedAt = run.EndedAt.In(time.UTC)
	}
	return &run, nil
}

// Close closes the database connection
func (s *HistorySaver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

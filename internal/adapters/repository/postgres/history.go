package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/pkg/serialization"
)

// HistorySaver implements history.Saver for PostgreSQL
type HistorySaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewHistorySaver creates a new PostgreSQL history saver
func NewHistorySaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *HistorySaver {
	if serializer == nil {
		serializer = serialization.Default()
	}
	return &HistorySaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "stategraph_runs",
	}
}

// Connect opens a pool for dsn and prepares the table
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*HistorySaver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := NewHistorySaver(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
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
		INSERT INTO %s (id, graph_name, status, started_at, ended_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			graph_name = EXCLUDED.graph_name,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			payload = EXCLUDED.payload
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query,
		run.ID, run.GraphName, string(run.Status), run.StartedAt, run.EndedAt, data); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a run by ID
func (s *HistorySaver) Load(ctx context.Context, id string) (*history.Run, error) {
	if id == "" {
		return nil, history.ErrInvalidRunID
	}
	query := fmt.Sprintf("SELECT payload FROM %s WHERE id = $1", s.tableName)

	var data []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to scan run rows: %w", err)
	}

	runs := make([]*history.Run, 0, len(payloads))
	for _, data := range payloads {
		run, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes a run by ID
func (s *HistorySaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRunID
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return history.ErrRunNotFound
	}
	return nil
}

// CreateTables creates the necessary database tables
func (s *HistorySaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id VARCHAR(255) PRIMARY KEY,
			graph_name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_graph_name ON %[1]s (graph_name);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_started_at ON %[1]s (started_at);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// DropTables removes the table; used by tests
func (s *HistorySaver) DropTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.tableName))
	return err
}

// buildListQuery constructs the SQL query for listing runs
func (s *HistorySaver) buildListQuery(filter history.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0, 6)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.GraphName != "" {
		query += " AND graph_name = " + arg(filter.GraphName)
	}
	if filter.Status != "" {
		query += " AND status = " + arg(string(filter.Status))
	}
	if filter.Since != nil {
		query += " AND started_at >= " + arg(*filter.Since)
	}
	if filter.Before != nil {
		query += " AND started_at < " + arg(*filter.Before)
	}

	query += " ORDER BY started_at DESC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}
	return query, args
}

func (s *HistorySaver) decode(data []byte) (*history.Run, error) {
	var run history.Run
	if err := s.serializer.Deserialize(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &run, nil
}

// Close closes the database connection pool
func (s *HistorySaver) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

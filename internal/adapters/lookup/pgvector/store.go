// Package pgvector implements lookup.Store on PostgreSQL with the pgvector
// extension. Documents and queries are embedded with an llm.Embedder and
// ranked by cosine distance.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/wandermind/stategraph/internal/adapters/llm"
)

const (
	DefaultTable      = "travel_notes"
	DefaultDimensions = 1536
)

var (
	ErrNoEmbedder         = errors.New("pgvector: embedder is required")
	ErrInvalidTable       = errors.New("pgvector: invalid table name")
	ErrInvalidDimensions  = errors.New("pgvector: dimensions must be positive")
	ErrDimensionMismatch  = errors.New("pgvector: embedding dimension mismatch")
	ErrEmbeddingCountDiff = errors.New("pgvector: embedder returned wrong number of vectors")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Document is one searchable note
type Document struct {
	ID      string
	Content string
}

// Config holds store settings
type Config struct {
	Table      string
	Dimensions int
	// MinSimilarity drops results whose cosine similarity is lower; zero keeps all
	MinSimilarity float64
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	return c
}

// Validate checks the table name and dimensions
func (c Config) Validate() error {
	if !identPattern.MatchString(c.Table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, c.Table)
	}
	if c.Dimensions <= 0 {
		return ErrInvalidDimensions
	}
	return nil
}

// Store is a vector-backed lookup store
type Store struct {
	pool     *pgxpool.Pool
	embedder llm.Embedder
	config   Config
}

// New wraps an existing pool
func New(pool *pgxpool.Pool, embedder llm.Embedder, cfg Config) (*Store, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{pool: pool, embedder: embedder, config: cfg}, nil
}

// Connect opens a pool for dsn and creates the schema
func Connect(ctx context.Context, dsn string, embedder llm.Embedder, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := New(pool, embedder, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// CreateTables enables the vector extension and creates the notes table
func (s *Store) CreateTables(ctx context.Context) error {
	queries := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.config.Table, s.config.Dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)", s.config.Table),
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// Add embeds docs and upserts them by id
func (s *Store) Add(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`, s.config.Table)

	batch := &pgx.Batch{}
	for i, d := range docs {
		batch.Queue(query, d.ID, d.Content, pgvector.NewVector(vectors[i]))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	return nil
}

// Search embeds query and returns the closest documents' content
func (s *Store) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, s.searchQuery(), pgvector.NewVector(vectors[0]), s.config.MinSimilarity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}
	return docs, nil
}

// Delete removes documents by id
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.config.Table)
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DropTables removes the notes table
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.config.Table))
	return err
}

// Close releases the pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) searchQuery() string {
	return fmt.Sprintf(`SELECT content FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, s.config.Table)
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingCountDiff, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != s.config.Dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(v), s.config.Dimensions)
		}
	}
	return vectors, nil
}

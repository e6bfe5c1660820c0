package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/core/history/historytest"
	"github.com/wandermind/stategraph/pkg/serialization"
)

func newSaver(t *testing.T) history.Saver {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHistorySaver_Conformance(t *testing.T) {
	historytest.Run(t, newSaver)
}

func TestHistorySaver_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, historytest.SampleRun("run-1", "travel", history.StatusCompleted, 0)))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "travel", run.GraphName)
}

func TestHistorySaver_EncryptedPayload(t *testing.T) {
	ctx := context.Background()
	key := []byte("0123456789abcdef0123456789abcdef")
	ser := serialization.MustNew(serialization.Config{Compression: serialization.CompressionZstd, EncryptKey: key})

	s, err := Open(ctx, ":memory:", ser)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(ctx, historytest.SampleRun("run-1", "travel", history.StatusCompleted, 0)))

	var raw []byte
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT payload FROM runs WHERE id = ?", "run-1").Scan(&raw))
	assert.NotContains(t, string(raw), "Asakusa")

	run, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Day 1: Asakusa", run.Final["itinerary"])
}

func TestHistorySaver_WithTableName(t *testing.T) {
	s := NewHistorySaver(nil, nil)
	assert.Equal(t, "runs", s.WithTableName("bad;name").tableName)
	assert.Equal(t, "audit_runs", s.WithTableName("audit_runs").tableName)
}

func TestBuildListQuery(t *testing.T) {
	s := NewHistorySaver(nil, nil)

	query, args := s.buildListQuery(history.Filter{GraphName: "travel", Offset: 5})
	assert.Contains(t, query, "graph_name = ?")
	assert.Contains(t, query, "LIMIT ? OFFSET ?")
	assert.Equal(t, []any{"travel", -1, 5}, args)

	query, args = s.buildListQuery(history.Filter{})
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

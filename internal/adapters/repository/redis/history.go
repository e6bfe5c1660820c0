// Package redis stores run history in Redis
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/pkg/serialization"
)

// HistorySaver implements history.Saver using Redis. Each run is one string
// key plus a small hash naming its graph and status; sorted sets scored by
// start time index the runs overall, per graph and per status.
type HistorySaver struct {
	client     *backend.Client
	serializer *serialization.Serializer
	prefix     string
	ttl        time.Duration
}

type Option func(*HistorySaver)

// WithTTL sets the expiration for runs
func WithTTL(ttl time.Duration) Option {
	return func(s *HistorySaver) { s.ttl = ttl }
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(s *HistorySaver) { s.prefix = prefix }
}

// WithSerializer replaces the default msgpack+zstd serializer
func WithSerializer(ser *serialization.Serializer) Option {
	return func(s *HistorySaver) { s.serializer = ser }
}

// New connects to a Redis server
func New(address, password string, db int, opts ...Option) *HistorySaver {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromURL parses a redis:// URL
func NewFromURL(url string, opts ...Option) (*HistorySaver, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(o), opts...), nil
}

// NewFromClient wraps an existing client
func NewFromClient(client *backend.Client, opts ...Option) *HistorySaver {
	s := &HistorySaver{
		client:     client,
		serializer: serialization.Default(),
		prefix:     "stategraph:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HistorySaver) key(id string) string { return s.prefix + "run:" + id }

func (s *HistorySaver) metaKey(id string) string { return s.prefix + "meta:" + id }

func (s *HistorySaver) indexKey() string { return s.prefix + "index" }

func (s *HistorySaver) graphIndexKey(graph string) string { return s.prefix + "index:graph:" + graph }

func (s *HistorySaver) statusIndexKey(status string) string { return s.prefix + "index:status:" + status }

// score orders the indexes newest first under ascending ranges, so runs
// starting in the same microsecond fall back to id order as in
// history.SortNewestFirst.
func score(t time.Time) float64 { return -float64(t.UnixMicro()) }

// Save persists a run and indexes it by start time, overall and per graph
// and status. A replaced run leaves the indexes of its old graph and status.
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
	old, err := s.client.HMGet(ctx, s.metaKey(run.ID), "graph", "status").Result()
	if err != nil {
		return fmt.Errorf("failed to read run meta: %w", err)
	}

	pipe := s.client.TxPipeline()
	if g, ok := old[0].(string); ok && g != run.GraphName {
		pipe.ZRem(ctx, s.graphIndexKey(g), run.ID)
	}
	if st, ok := old[1].(string); ok && st != string(run.Status) {
		pipe.ZRem(ctx, s.statusIndexKey(st), run.ID)
	}
	pipe.Set(ctx, s.key(run.ID), data, s.ttl)
	pipe.HSet(ctx, s.metaKey(run.ID), "graph", run.GraphName, "status", string(run.Status))
	if s.ttl > 0 {
		pipe.Expire(ctx, s.metaKey(run.ID), s.ttl)
	}
	z := backend.Z{Score: score(run.StartedAt), Member: run.ID}
	pipe.ZAdd(ctx, s.indexKey(), z)
	pipe.ZAdd(ctx, s.graphIndexKey(run.GraphName), z)
	pipe.ZAdd(ctx, s.statusIndexKey(string(run.Status)), z)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a run
func (s *HistorySaver) Load(ctx context.Context, id string) (*history.Run, error) {
	if id == "" {
		return nil, history.ErrInvalidRunID
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, history.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return s.decode(data)
}

// List reads the narrowest index for the filter. When that index answers the
// filter on its own the page is cut in Redis and only its runs are fetched;
// otherwise every candidate is loaded and filtered in memory. Index entries
// whose run has expired are pruned on the way.
func (s *HistorySaver) List(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	index := s.indexKey()
	switch {
	case filter.GraphName != "":
		index = s.graphIndexKey(filter.GraphName)
	case filter.Status != "":
		index = s.statusIndexKey(string(filter.Status))
	}
	exact := (filter.GraphName == "" || filter.Status == "") &&
		microAligned(filter.Since) && microAligned(filter.Before)

	rng := &backend.ZRangeBy{Min: "-inf", Max: "+inf"}
	if filter.Before != nil {
		// a bound inside a microsecond is widened and left to filter.Apply
		rng.Min = strconv.FormatInt(-filter.Before.UnixMicro(), 10)
		if microAligned(filter.Before) {
			rng.Min = "(" + rng.Min
		}
	}
	if filter.Since != nil {
		rng.Max = strconv.FormatInt(-filter.Since.UnixMicro(), 10)
	}
	if exact && filter.Limit > 0 {
		rng.Offset = int64(filter.Offset)
		rng.Count = int64(filter.Limit)
	}

	for {
		ids, err := s.client.ZRangeByScore(ctx, index, rng).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read index: %w", err)
		}
		if exact && filter.Limit == 0 {
			ids = ids[min(filter.Offset, len(ids)):]
		}
		runs, stale, err := s.fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(stale) > 0 {
			if err := s.prune(ctx, index, stale); err != nil {
				return nil, err
			}
			// the pruned ids shifted the page, read it again
			if exact {
				continue
			}
		}
		if exact {
			return runs, nil
		}
		return filter.Apply(runs), nil
	}
}

// Delete removes a run and its index entries
func (s *HistorySaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return history.ErrInvalidRunID
	}
	meta, err := s.client.HMGet(ctx, s.metaKey(id), "graph", "status").Result()
	if err != nil {
		return fmt.Errorf("failed to read run meta: %w", err)
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(id))
	pipe.Del(ctx, s.metaKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	if g, ok := meta[0].(string); ok {
		pipe.ZRem(ctx, s.graphIndexKey(g), id)
	}
	if st, ok := meta[1].(string); ok {
		pipe.ZRem(ctx, s.statusIndexKey(st), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if del.Val() == 0 {
		return history.ErrRunNotFound
	}
	return nil
}

// fetch loads runs in ids order and reports ids whose payload is gone
func (s *HistorySaver) fetch(ctx context.Context, ids []string) ([]*history.Run, []any, error) {
	if len(ids) == 0 {
		return []*history.Run{}, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get runs: %w", err)
	}

	runs := make([]*history.Run, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		run, err := s.decode([]byte(raw))
		if err != nil {
			return nil, nil, err
		}
		runs = append(runs, run)
	}
	return runs, stale, nil
}

// prune drops expired ids from the overall index, every status index and
// the index that was read
func (s *HistorySaver) prune(ctx context.Context, index string, ids []any) error {
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.indexKey(), ids...)
	pipe.ZRem(ctx, index, ids...)
	for _, st := range []history.Status{history.StatusCompleted, history.StatusFailed, history.StatusCancelled} {
		pipe.ZRem(ctx, s.statusIndexKey(string(st)), ids...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prune expired runs: %w", err)
	}
	return nil
}

func microAligned(t *time.Time) bool {
	return t == nil || t.Nanosecond()%int(time.Microsecond) == 0
}

func (s *HistorySaver) decode(data []byte) (*history.Run, error) {
	var run history.Run
	if err := s.serializer.Deserialize(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &run, nil
}

// Close closes the redis client
func (s *HistorySaver) Close() error {
	return s.client.Close()
}

// Package memory keeps run history in process memory
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/pkg/serialization"
)

// HistorySaver implements history.Saver with bounded in-memory storage
// PRINCIPLES:
// - KISS: one map guarded by one mutex
// - SRP: Single responsibility for in-memory run storage
// - DIP: Implements history.Saver interface
//
// Runs are stored serialized so a loaded Run never aliases a saved one.
// Expired runs are dropped lazily and by a background sweep; when the byte
// budget is exceeded the least recently used runs are evicted.
type HistorySaver struct {
	mu          sync.Mutex
	entries     map[string]*entry
	currentSize int64

	ttl        time.Duration
	maxBytes   int64
	serializer *serialization.Serializer
	now        func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

// Config holds configuration for HistorySaver
type Config struct {
	TTL             time.Duration // zero keeps runs until evicted
	MaxMemoryMB     int64         // default 64
	CleanupInterval time.Duration // zero disables the background sweep
	Serializer      *serialization.Serializer
}

type entry struct {
	summary    *history.Run // header only, used for List filtering
	data       []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// Stats reports memory usage
type Stats struct {
	Count              int     `json:"count"`
	Bytes              int64   `json:"bytes"`
	MaxBytes           int64   `json:"max_bytes"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// NewHistorySaver creates a saver; call Close to stop the sweep goroutine
func NewHistorySaver(cfg Config) *HistorySaver {
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = 64
	}
	if cfg.Serializer == nil {
		cfg.Serializer = serialization.Default()
	}
	s := &HistorySaver{
		entries:    make(map[string]*entry),
		ttl:        cfg.TTL,
		maxBytes:   cfg.MaxMemoryMB * 1024 * 1024,
		serializer: cfg.Serializer,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go s.sweep(cfg.CleanupInterval)
	}
	return s
}

// NewDefault creates a saver with no TTL and the default budget
func NewDefault() *HistorySaver {
	return NewHistorySaver(Config{})
}

// Save stores a copy of run
func (s *HistorySaver) Save(_ context.Context, run *history.Run) error {
	if run == nil {
		return history.ErrInvalidRunID
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(run)
	if err != nil {
		return fmt.Errorf("run serialization failed: %w", err)
	}
	size := int64(len(data))

	if size > s.maxBytes {
		return fmt.Errorf("memory limit exceeded: need %d bytes, budget %d", size, s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var replaced int64
	if old, ok := s.entries[run.ID]; ok {
		replaced = int64(len(old.data))
	}
	// the other runs always hold enough to make room once size fits the budget
	if over := s.currentSize - replaced + size - s.maxBytes; over > 0 {
		s.evictLRU(over, run.ID)
	}

	now := s.now()
	e := &entry{summary: header(run), data: data, accessedAt: now}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.remove(run.ID)
	s.entries[run.ID] = e
	s.currentSize += size
	return nil
}

// Load retrieves a run
func (s *HistorySaver) Load(_ context.Context, id string) (*history.Run, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expired(e) {
		s.remove(id)
		ok = false
	}
	if ok {
		e.accessedAt = s.now()
	}
	s.mu.Unlock()

	if !ok {
		return nil, history.ErrRunNotFound
	}
	var run history.Run
	if err := s.serializer.Deserialize(e.data, &run); err != nil {
		return nil, fmt.Errorf("run deserialization failed: %w", err)
	}
	return &run, nil
}

// List returns full runs matching the filter, newest first
func (s *HistorySaver) List(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.Lock()
	headers := make([]*history.Run, 0, len(s.entries))
	for id, e := range s.entries {
		if s.expired(e) {
			s.remove(id)
			continue
		}
		headers = append(headers, e.summary)
	}
	s.mu.Unlock()

	page := filter.Apply(headers)
	runs := make([]*history.Run, 0, len(page))
	for _, h := range page {
		run, err := s.Load(ctx, h.ID)
		if err != nil {
			// evicted between the snapshot and now
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes a run
func (s *HistorySaver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return history.ErrRunNotFound
	}
	s.remove(id)
	return nil
}

// Stats returns memory usage statistics
func (s *HistorySaver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Count:              len(s.entries),
		Bytes:              s.currentSize,
		MaxBytes:           s.maxBytes,
		UtilizationPercent: float64(s.currentSize) / float64(s.maxBytes) * 100,
	}
}

// Close stops the background sweep
func (s *HistorySaver) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *HistorySaver) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if s.expired(e) {
					s.remove(id)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// caller holds mu
func (s *HistorySaver) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// caller holds mu
func (s *HistorySaver) remove(id string) {
	if e, ok := s.entries[id]; ok {
		s.currentSize -= int64(len(e.data))
		delete(s.entries, id)
	}
}

// evictLRU frees at least target bytes if it can, never touching keep; caller holds mu
func (s *HistorySaver) evictLRU(target int64, keep string) int64 {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		if id != keep {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].accessedAt.Before(s.entries[ids[j]].accessedAt)
	})

	var freed int64
	for _, id := range ids {
		if freed >= target {
			break
		}
		freed += int64(len(s.entries[id].data))
		s.remove(id)
	}
	return freed
}

// header keeps only the fields Filter looks at
func header(run *history.Run) *history.Run {
	return &history.Run{
		ID:        run.ID,
		GraphName: run.GraphName,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		EndedAt:   run.EndedAt,
	}
}

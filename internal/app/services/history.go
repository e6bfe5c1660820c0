package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wandermind/stategraph/internal/app/usecases"
	"github.com/wandermind/stategraph/internal/core/history"
	"github.com/wandermind/stategraph/internal/core/state"
)

// HistoryService turns run outcomes into history records
// PRINCIPLES:
// - SRP: Only converts and forwards; storage is the saver's job
// - DIP: Depends on history.Saver abstraction
type HistoryService struct {
	saver history.Saver
	now   func() time.Time
}

// NewHistoryService creates a new history service
func NewHistoryService(saver history.Saver) *HistoryService {
	return &HistoryService{saver: saver, now: time.Now}
}

// Attempt identifies one run the caller started
type Attempt struct {
	RunID     string
	GraphName string
	Input     state.State
	Tags      []string
	StartedAt time.Time
}

// FromResult builds the record of a run that reached END
func (s *HistoryService) FromResult(a Attempt, res *usecases.Result) *history.Run {
	run := s.base(a)
	run.ID = res.RunID
	run.GraphName = res.GraphName
	run.Status = history.StatusCompleted
	run.Final = res.Final.Values()
	run.Steps = history.StepsFromTrace(res.Trace)
	run.StartedAt = res.StartedAt
	run.EndedAt = res.StartedAt.Add(res.Duration)
	return run
}

// FromError builds the record of a run that stopped with err. Errors raised
// before the first node produce a record with no steps.
func (s *HistoryService) FromError(a Attempt, err error) *history.Run {
	run := s.base(a)
	run.Status = history.StatusFailed
	if errors.Is(err, usecases.ErrCancelled) {
		run.Status = history.StatusCancelled
	}
	run.Error = err.Error()
	run.ErrorKind = usecases.ErrorKind(err)
	run.FailedAt = usecases.FailedNodeOf(err)
	if tr, ok := usecases.TraceOf(err); ok {
		run.Steps = history.StepsFromTrace(tr)
	}
	if last, ok := usecases.LastStateOf(err); ok && !last.IsZero() {
		run.Final = last.Values()
	}
	return run
}

// Record saves run
func (s *HistoryService) Record(ctx context.Context, run *history.Run) error {
	if err := s.saver.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads one run
func (s *HistoryService) Get(ctx context.Context, id string) (*history.Run, error) {
	run, err := s.saver.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs matching filter, newest first
func (s *HistoryService) List(ctx context.Context, filter history.Filter) ([]*history.Run, error) {
	runs, err := s.saver.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Delete removes one run
func (s *HistoryService) Delete(ctx context.Context, id string) error {
	if err := s.saver.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

func (s *HistoryService) base(a Attempt) *history.Run {
	run := &history.Run{
		ID:        a.RunID,
		GraphName: a.GraphName,
		Tags:      a.Tags,
		StartedAt: a.StartedAt,
		EndedAt:   s.now(),
	}
	if !a.Input.IsZero() {
		run.Input = a.Input.Values()
	}
	return run
}

package http

import (
	"errors"
	"time"

	"github.com/wandermind/stategraph/internal/app/dto"
	"github.com/wandermind/stategraph/pkg/stategraph"
)

func completedResponse(res *stategraph.Result) dto.RunResponse {
	return dto.RunResponse{
		RunID:     res.RunID,
		GraphName: res.GraphName,
		Status:    dto.RunStatusCompleted,
		Output:    res.Final.Values(),
		Steps:     stepResults(res.Trace),
		StartTime: res.StartedAt,
		Duration:  res.Duration,
	}
}

// failedResponse reports a run error with the steps that completed before it
func failedResponse(runID, graphName string, err error) dto.RunResponse {
	resp := dto.RunResponse{
		RunID:     runID,
		GraphName: graphName,
		Status:    dto.RunStatusFailed,
		Steps:     []dto.StepResult{},
		Error:     err.Error(),
		ErrorKind: stategraph.ErrorKind(err),
		FailedAt:  stategraph.FailedNodeOf(err),
	}
	if errors.Is(err, stategraph.ErrCancelled) {
		resp.Status = dto.RunStatusCancelled
	}
	if tr, ok := stategraph.TraceOf(err); ok {
		resp.Steps = stepResults(tr)
		if len(tr) > 0 {
			resp.StartTime = tr[0].StartedAt
			last := tr[len(tr)-1]
			resp.Duration = last.StartedAt.Add(last.Duration).Sub(resp.StartTime)
		}
	}
	if last, ok := stategraph.LastStateOf(err); ok && !last.IsZero() {
		resp.Output = last.Values()
	}
	if resp.StartTime.IsZero() {
		resp.StartTime = time.Now()
	}
	return resp
}

func stepResults(tr stategraph.Trace) []dto.StepResult {
	out := make([]dto.StepResult, 0, len(tr))
	for _, rec := range tr {
		changes := make([]dto.ChangeResult, 0, len(rec.Changes))
		for _, c := range rec.Changes {
			changes = append(changes, dto.ChangeResult{Field: c.Field, Op: string(c.Op), Value: c.Value})
		}
		out = append(out, dto.StepResult{
			Step:      rec.Step,
			NodeID:    rec.NodeID,
			Changes:   changes,
			StartTime: rec.StartedAt,
			Duration:  rec.Duration,
		})
	}
	return out
}

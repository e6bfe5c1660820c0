// Package metrics exports Prometheus collectors fed by executor lifecycle
// events. Register a Recorder as an executor hook and serve its registry on
// /metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wandermind/stategraph/internal/app/usecases"
)

const namespace = "stategraph"

// Recorder implements usecases.Hook
type Recorder struct {
	runsStarted   *prometheus.CounterVec
	runsFinished  *prometheus.CounterVec
	runsActive    *prometheus.GaugeVec
	runDuration   *prometheus.HistogramVec
	nodeCalls     *prometheus.CounterVec
	nodeDurations *prometheus.HistogramVec
}

var _ usecases.Hook = (*Recorder)(nil)

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Runs started, by graph.",
		}, []string{"graph"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs finished, by graph and outcome kind.",
		}, []string{"graph", "kind"}),
		runsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs in progress, by graph.",
		}, []string{"graph"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"graph"}),
		nodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_invocations_total",
			Help:      "Node invocations, by graph, node and outcome.",
		}, []string{"graph", "node", "outcome"}),
		nodeDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node invocation time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"graph", "node"}),
	}

	for _, c := range []prometheus.Collector{
		r.runsStarted, r.runsFinished, r.runsActive, r.runDuration, r.nodeCalls, r.nodeDurations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew panics if registration fails
func MustNew(reg prometheus.Registerer) *Recorder {
	r, err := New(reg)
	if err != nil {
		panic(err)
	}
	return r
}

// OnEvent implements usecases.Hook
func (r *Recorder) OnEvent(_ context.Context, ev usecases.Event) {
	switch ev.Type {
	case usecases.EventRunStarted:
		r.runsStarted.WithLabelValues(ev.GraphName).Inc()
		r.runsActive.WithLabelValues(ev.GraphName).Inc()
	case usecases.EventRunCompleted:
		r.finish(ev, "completed")
	case usecases.EventRunFailed:
		r.finish(ev, usecases.ErrorKind(ev.Err))
	case usecases.EventNodeCompleted:
		r.nodeCalls.WithLabelValues(ev.GraphName, ev.NodeID, "ok").Inc()
		r.nodeDurations.WithLabelValues(ev.GraphName, ev.NodeID).Observe(ev.Duration.Seconds())
	case usecases.EventNodeFailed:
		r.nodeCalls.WithLabelValues(ev.GraphName, ev.NodeID, "error").Inc()
		r.nodeDurations.WithLabelValues(ev.GraphName, ev.NodeID).Observe(ev.Duration.Seconds())
	}
}

func (r *Recorder) finish(ev usecases.Event, kind string) {
	r.runsActive.WithLabelValues(ev.GraphName).Dec()
	r.runsFinished.WithLabelValues(ev.GraphName, kind).Inc()
	r.runDuration.WithLabelValues(ev.GraphName).Observe(ev.Duration.Seconds())
}

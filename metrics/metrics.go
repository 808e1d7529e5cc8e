// Package metrics exposes Prometheus collectors for stage runs, loop
// iterations, capability calls and fan-out fallbacks.
//
// A nil *Collector is valid and records nothing, so components can accept an
// optional collector without branching at every call site.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricStageRuns       = "agentflow_stage_runs_total"
	MetricStageDuration   = "agentflow_stage_duration_seconds"
	MetricLoopIterations  = "agentflow_loop_iterations"
	MetricToolCalls       = "agentflow_tool_calls_total"
	MetricFanOutFallbacks = "agentflow_fanout_fallbacks_total"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTruncated = "truncated"
	OutcomeNotFound  = "not_found"
)

// Collector groups the agentflow collectors.
type Collector struct {
	stageRuns       *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	loopIterations  *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	fanOutFallbacks *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStageRuns,
				Help: "Total number of stage runs by outcome",
			},
			[]string{"stage", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricStageDuration,
				Help:    "Duration of stage runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		loopIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricLoopIterations,
				Help:    "Decision turns taken per loop run",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 25, 50},
			},
			[]string{"stage"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricToolCalls,
				Help: "Total number of capability invocations by outcome",
			},
			[]string{"stage", "tool", "outcome"},
		),
		fanOutFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFanOutFallbacks,
				Help: "Total number of fan-out branches replaced by their fallback",
			},
			[]string{"coordinator", "branch"},
		),
	}

	var err error
	if c.stageRuns, err = register(reg, c.stageRuns); err != nil {
		return nil, err
	}
	if c.stageDuration, err = register(reg, c.stageDuration); err != nil {
		return nil, err
	}
	if c.loopIterations, err = register(reg, c.loopIterations); err != nil {
		return nil, err
	}
	if c.toolCalls, err = register(reg, c.toolCalls); err != nil {
		return nil, err
	}
	if c.fanOutFallbacks, err = register(reg, c.fanOutFallbacks); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg. A collector registered earlier under the same
// descriptor is reused so several collectors can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return col, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// ObserveStage records one stage run.
func (c *Collector) ObserveStage(stage, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageRuns.WithLabelValues(stage, outcome).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveIterations records the decision turns a loop run used.
func (c *Collector) ObserveIterations(stage string, n int) {
	if c == nil {
		return
	}
	c.loopIterations.WithLabelValues(stage).Observe(float64(n))
}

// IncToolCall counts one capability invocation.
func (c *Collector) IncToolCall(stage, tool, outcome string) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(stage, tool, outcome).Inc()
}

// IncFallback counts a fan-out branch that was replaced by its fallback.
func (c *Collector) IncFallback(coordinator, branch string) {
	if c == nil {
		return
	}
	c.fanOutFallbacks.WithLabelValues(coordinator, branch).Inc()
}

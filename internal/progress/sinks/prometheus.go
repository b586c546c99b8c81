package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/quizchain/internal/progress"
)

// PrometheusSink exports run and step progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	runSteps      prometheus.Histogram

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	verdicts     *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_runs_started_total",
			Help: "Workflow runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_runs_completed_total",
			Help: "Workflow runs completed, by termination reason.",
		}, []string{"reason"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_runs_running",
			Help: "Workflow runs currently in flight.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_run_duration_seconds",
			Help:    "Wall time per completed run, by termination reason.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		}, []string{"reason"}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_run_steps",
			Help:    "Steps executed per completed run.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_steps_total",
			Help: "Completed steps, by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quiz_step_duration_seconds",
			Help:    "Step duration, by outcome.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submit_verdicts_total",
			Help: "Verdicts returned by submit endpoints.",
		}, []string{"correct"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.runSteps,
		s.steps,
		s.stepDuration,
		s.verdicts,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			s.runsRunning.Inc()
		case progress.StageStepDone:
			outcome := string(evt.Outcome)
			s.steps.WithLabelValues(outcome).Inc()
			if evt.Dur > 0 {
				s.stepDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
			}
			if evt.Correct != nil {
				s.verdicts.WithLabelValues(strconv.FormatBool(*evt.Correct)).Inc()
			}
		case progress.StageRunDone:
			s.runsCompleted.WithLabelValues(evt.Reason).Inc()
			s.runsRunning.Dec()
			s.runSteps.Observe(float64(evt.Step))
			if evt.Dur > 0 {
				s.runDuration.WithLabelValues(evt.Reason).Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

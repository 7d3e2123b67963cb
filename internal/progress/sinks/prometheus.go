package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cortexmap/cortex/internal/progress"
)

// PrometheusSink exports mapping-attempt progress metrics via Prometheus. It
// owns all collectors for attempts started/completed/running and per-domain
// fetch counters.
type PrometheusSink struct {
	attemptsStarted   prometheus.Counter
	attemptsCompleted *prometheus.CounterVec
	attemptsRunning   prometheus.Gauge
	attemptRuntime    *prometheus.HistogramVec

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tracker *attemptTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cortex_mapping_attempts_started_total",
			Help: "Total mapping attempts that have started.",
		}),
		attemptsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_mapping_attempts_completed_total",
			Help: "Total mapping attempts completed partitioned by result.",
		}, []string{"result"}),
		attemptsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cortex_mapping_attempts_running",
			Help: "Current number of running mapping attempts.",
		}),
		attemptRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_mapping_attempt_runtime_seconds",
			Help:    "Wall time per completed mapping attempt.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_progress_fetch_requests_total",
			Help: "Fetch completions partitioned by domain and status class.",
		}, []string{"domain", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cortex_progress_fetch_bytes_total",
			Help: "Bytes downloaded per domain.",
		}, []string{"domain"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cortex_progress_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by domain and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"domain", "status_class"}),
		tracker: newAttemptTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.attemptsStarted,
		s.attemptsCompleted,
		s.attemptsRunning,
		s.attemptRuntime,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAttemptStart, progress.StageAttemptDone, progress.StageAttemptError:
		s.handleAttemptEvent(evt)
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	}
}

func (s *PrometheusSink) handleAttemptEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAttemptStart:
		s.attemptsStarted.Inc()
		if s.tracker.start(evt.AttemptID) {
			s.attemptsRunning.Inc()
		}
	case progress.StageAttemptDone:
		s.attemptsCompleted.WithLabelValues("success").Inc()
		s.observeRuntime(evt, "success")
	case progress.StageAttemptError:
		s.attemptsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
	if evt.Stage != progress.StageAttemptStart && s.tracker.complete(evt.AttemptID) {
		s.attemptsRunning.Dec()
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.attemptRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	domain := evt.Domain
	if domain == "" {
		domain = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(domain, statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(domain).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(domain, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type attemptTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newAttemptTracker() *attemptTracker {
	return &attemptTracker{running: make(map[[16]byte]struct{})}
}

func (t *attemptTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *attemptTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}

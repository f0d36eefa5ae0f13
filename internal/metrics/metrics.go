// Package metrics exposes Prometheus collectors for agent activity.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the agent's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	plannerRequests *prometheus.CounterVec
	plannerLatency  prometheus.Histogram
	toolCalls       *prometheus.CounterVec
	consent         *prometheus.CounterVec
	staleConsent    prometheus.Counter
	searchHits      prometheus.Histogram
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers the collectors with reg. Collectors already registered
// under the same name are reused.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		plannerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoagent", Subsystem: "planner", Name: "requests_total",
			Help: "Planner round trips by outcome.",
		}, []string{"outcome"}),
		plannerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoagent", Subsystem: "planner", Name: "latency_seconds",
			Help: "Planner round trip latency.", Buckets: prometheus.DefBuckets,
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoagent", Subsystem: "tools", Name: "calls_total",
			Help: "Tool dispatches by tool and outcome.",
		}, []string{"tool", "outcome"}),
		consent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photoagent", Subsystem: "consent", Name: "decisions_total",
			Help: "Consent decisions by mutation kind.",
		}, []string{"kind", "decision"}),
		staleConsent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "photoagent", Subsystem: "consent", Name: "stale_total",
			Help: "Consent results ignored because no matching mutation was pending.",
		}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoagent", Subsystem: "search", Name: "hits",
			Help: "Photos returned per search.", Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
	m.plannerRequests = register(reg, m.plannerRequests)
	m.plannerLatency = register(reg, m.plannerLatency)
	m.toolCalls = register(reg, m.toolCalls)
	m.consent = register(reg, m.consent)
	m.staleConsent = register(reg, m.staleConsent)
	m.searchHits = register(reg, m.searchHits)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) ObservePlanner(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.plannerRequests.WithLabelValues(outcome).Inc()
	m.plannerLatency.Observe(d.Seconds())
}

func (m *Metrics) IncToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) IncConsent(kind string, granted bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if granted {
		decision = "granted"
	}
	m.consent.WithLabelValues(kind, decision).Inc()
}

func (m *Metrics) IncStaleConsent() {
	if m == nil {
		return
	}
	m.staleConsent.Inc()
}

func (m *Metrics) ObserveSearchHits(n int) {
	if m == nil {
		return
	}
	m.searchHits.Observe(float64(n))
}

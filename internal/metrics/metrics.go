// Package metrics holds the Prometheus collectors for the assistant.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assistant"

// Metrics reports webhook, skill and model activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	skillOutcomes *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	truncations   prometheus.Counter
	parseFailures *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Inbound webhook events by channel and final status.",
			},
			[]string{"channel", "status"},
		),
		skillOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "skill",
				Name:      "outcomes_total",
				Help:      "Skill invocations by skill name and outcome.",
			},
			[]string{"skill", "outcome"},
		),
		llmDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "request_duration_seconds",
				Help:      "Language model call latency.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"provider", "status"},
		),
		truncations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "truncated_replies_total",
				Help:      "Dispatches whose replies exceeded the outbound message cap.",
			},
		),
		parseFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "parse_failures_total",
				Help:      "Model responses that could not be turned into actions.",
			},
			[]string{"agent"},
		),
	}

	for _, c := range []prometheus.Collector{m.webhookEvents, m.skillOutcomes, m.llmDuration, m.truncations, m.parseFailures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return m, nil
}

// WebhookEvent counts one handled inbound event.
func (m *Metrics) WebhookEvent(channel, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(channel, status).Inc()
}

// SkillOutcome counts one skill invocation.
func (m *Metrics) SkillOutcome(skill, outcome string) {
	if m == nil {
		return
	}
	m.skillOutcomes.WithLabelValues(skill, outcome).Inc()
}

// ObserveLLM records the latency of one model call.
func (m *Metrics) ObserveLLM(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmDuration.WithLabelValues(provider, status).Observe(d.Seconds())
}

// Truncated counts a dispatch that hit the reply cap.
func (m *Metrics) Truncated() {
	if m == nil {
		return
	}
	m.truncations.Inc()
}

// ParseFailure counts an unparsable model response.
func (m *Metrics) ParseFailure(agent string) {
	if m == nil {
		return
	}
	m.parseFailures.WithLabelValues(agent).Inc()
}

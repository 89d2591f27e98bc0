// Package metrics holds the Prometheus collectors for scan passes and
// notification delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "budgee_monitor"

type Metrics struct {
	passes           *prometheus.CounterVec
	passDuration     prometheus.Histogram
	userFailures     prometheus.Counter
	goalsSkipped     prometheus.Counter
	events           *prometheus.CounterVec
	latchesHeld      *prometheus.CounterVec
	dispatched       *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	dispatchDropped  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_passes_total",
			Help:      "Completed scan passes by trigger.",
		}, []string{"trigger"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_pass_duration_seconds",
			Help:      "Wall time of a full scan pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		userFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_user_failures_total",
			Help:      "Users whose evaluation failed within a pass.",
		}),
		goalsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "goals_skipped_total",
			Help:      "Goals skipped because their stored state was invalid.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events that won their latch and were handed to the notifier.",
		}, []string{"kind"}),
		latchesHeld: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "latch_already_held_total",
			Help:      "Event candidates suppressed because the latch was already held.",
		}, []string{"kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dispatched_total",
			Help:      "Notifications delivered by a dispatcher.",
		}, []string{"dispatcher", "kind"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_dispatch_failures_total",
			Help:      "Notifications a dispatcher failed to deliver.",
		}, []string{"dispatcher", "kind"}),
		dispatchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped before delivery was attempted.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.passes, m.passDuration, m.userFailures, m.goalsSkipped, m.events,
			m.latchesHeld, m.dispatched, m.dispatchFailures, m.dispatchDropped,
		)
	}
	return m
}

func (m *Metrics) ObservePass(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(trigger).Inc()
	m.passDuration.Observe(d.Seconds())
}

func (m *Metrics) UserFailed() {
	if m == nil {
		return
	}
	m.userFailures.Inc()
}

func (m *Metrics) GoalSkipped() {
	if m == nil {
		return
	}
	m.goalsSkipped.Inc()
}

func (m *Metrics) EventEmitted(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) LatchHeld(kind string) {
	if m == nil {
		return
	}
	m.latchesHeld.WithLabelValues(kind).Inc()
}

func (m *Metrics) Dispatched(dispatcher, kind string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(dispatcher, kind).Inc()
}

func (m *Metrics) DispatchFailed(dispatcher, kind string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(dispatcher, kind).Inc()
}

func (m *Metrics) Dropped(kind string) {
	if m == nil {
		return
	}
	m.dispatchDropped.WithLabelValues(kind).Inc()
}

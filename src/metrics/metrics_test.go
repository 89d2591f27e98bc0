package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/metrics"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObservePass("scheduled", 120*time.Millisecond)
	m.EventEmitted("GoalClosed")
	m.EventEmitted("GoalClosed")
	m.LatchHeld("BudgetExceeded")
	m.Dispatched("webhook", "GoalClosed")
	m.DispatchFailed("nats", "GoalClosed")
	m.Dropped("BudgetExceeded")
	m.UserFailed()
	m.GoalSkipped()

	count, err := testutil.GatherAndCount(reg,
		"budgee_monitor_scan_passes_total",
		"budgee_monitor_events_emitted_total",
		"budgee_monitor_latch_already_held_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObservePass("manual", time.Second)
		m.EventEmitted("GoalClosed")
		m.LatchHeld("GoalClosed")
		m.Dispatched("log", "GoalClosed")
		m.DispatchFailed("log", "GoalClosed")
		m.Dropped("GoalClosed")
		m.UserFailed()
		m.GoalSkipped()
	})
}

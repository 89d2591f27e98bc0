package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/db/memory"
	"budgee-monitor/src/metrics"
	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
	"budgee-monitor/src/scheduler"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type countingScanner struct {
	calls atomic.Int64
	mu    sync.Mutex
	opts  []monitor.ScanOptions
	err   error
}

func (c *countingScanner) Scan(_ context.Context, opts monitor.ScanOptions) (*monitor.Report, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &monitor.Report{Trigger: opts.Trigger}, nil
}

func TestParseSchedule(t *testing.T) {
	from := time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		spec string
		want time.Time
	}{
		{"0 8 * * *", time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, time.October, 17, 10, 0, 0, 0, time.UTC)},
		{"@every 250ms", from.Add(250 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := scheduler.ParseSchedule(tt.spec)
			require.NoError(t, err)
			assert.True(t, s.Next(from).Equal(tt.want), s.Next(from).String())
		})
	}

	for _, bad := range []string{"every tuesday", "@every -1s", "@every soon"} {
		_, err := scheduler.ParseSchedule(bad)
		assert.Error(t, err, bad)
	}
}

func TestNext_DefaultIsEightAM(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2026, time.October, 17, 13, 0, 0, 0, time.UTC) } // 09:00 in New York

	s, err := scheduler.New(&countingScanner{}, scheduler.Config{Location: loc, Clock: clock}, quiet)
	require.NoError(t, err)

	next := s.Next()
	assert.True(t, next.Equal(time.Date(2026, time.October, 18, 8, 0, 0, 0, loc)), next.String())
}

func TestStart_FiresScheduledPasses(t *testing.T) {
	scanner := &countingScanner{}
	s, err := scheduler.New(scanner, scheduler.Config{Schedule: "@every 20ms"}, quiet)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "double start")

	assert.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	after := scanner.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, scanner.calls.Load(), "no passes after Stop")

	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	for _, o := range scanner.opts {
		assert.Equal(t, monitor.TriggerScheduled, o.Trigger)
	}
}

func TestTrigger_IsManual(t *testing.T) {
	scanner := &countingScanner{}
	s, err := scheduler.New(scanner, scheduler.Config{}, quiet)
	require.NoError(t, err)

	report, err := s.Trigger(context.Background(), monitor.ScanOptions{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, monitor.TriggerManual, report.Trigger)
	assert.Equal(t, int64(9), scanner.opts[0].UserID)
	assert.Equal(t, int64(1), s.Stats().Passes)
}

func TestTrigger_ReportsFailure(t *testing.T) {
	scanner := &countingScanner{err: errors.New("db down")}
	s, err := scheduler.New(scanner, scheduler.Config{}, quiet)
	require.NoError(t, err)

	_, err = s.Trigger(context.Background(), monitor.ScanOptions{})
	assert.Error(t, err)
	assert.Equal(t, int64(1), s.Stats().Failures)
}

type recorder struct {
	mu    sync.Mutex
	kinds []monitor.EventKind
}

func (r *recorder) Notify(_ context.Context, n monitor.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

// Scheduled and manual passes racing over the same data still notify once.
func TestScheduledAndManualPassesOverlap(t *testing.T) {
	store := memory.NewStore()
	user := store.AddUser(models.User{Name: "ana"})
	store.AddGoal(models.SavingsGoal{
		UserID: user.ID, Name: "Bike",
		TargetAmount: decimal.NewFromInt(1000), CurrentAmount: decimal.NewFromInt(950),
		TargetDate: time.Now().AddDate(0, 0, 10),
	})

	rec := &recorder{}
	engine, err := monitor.NewEngine(monitor.Deps{
		Users: store, Transactions: store, Goals: store, Budgets: store, BudgetLatches: store,
		Notifier: rec, Metrics: metrics.New(prometheus.NewRegistry()), Logger: quiet,
	}, monitor.Config{})
	require.NoError(t, err)

	s, err := scheduler.New(engine, scheduler.Config{Schedule: "@every 5ms"}, quiet)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Trigger(context.Background(), monitor.ScanOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return s.Stats().Passes >= 8 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 1, rec.count())
}

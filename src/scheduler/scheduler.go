// Package scheduler fires monitor scan passes on a cron schedule and exposes
// the same pass for manual triggering.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"budgee-monitor/src/monitor"
)

// DefaultSchedule runs a pass every day at 08:00.
const DefaultSchedule = "0 8 * * *"

// Scanner runs one pass. *monitor.Engine satisfies it.
type Scanner interface {
	Scan(ctx context.Context, opts monitor.ScanOptions) (*monitor.Report, error)
}

type Config struct {
	// Schedule is a five-field cron expression or a descriptor such as
	// "@daily" or "@every 1h".
	Schedule string
	Location *time.Location
	Clock    func() time.Time
}

// Stats is a snapshot of the scheduler counters.
type Stats struct {
	Passes   int64     `json:"passes"`
	Failures int64     `json:"failures"`
	LastPass time.Time `json:"last_pass,omitempty"`
	NextPass time.Time `json:"next_pass,omitempty"`
	Running  bool      `json:"running"`
}

type Scheduler struct {
	scanner  Scanner
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	// Lifecycle
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	passWG  sync.WaitGroup

	passes   atomic.Int64
	failures atomic.Int64
	lastMu   sync.RWMutex
	lastPass time.Time
}

// every fires at a fixed interval. cron's own @every rounds to whole seconds.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// ParseSchedule accepts standard cron expressions, descriptors, and
// "@every <duration>" with any positive duration.
func ParseSchedule(spec string) (cron.Schedule, error) {
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("parse schedule %q: invalid interval", spec)
		}
		return every(d), nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func New(scanner Scanner, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if scanner == nil {
		return nil, fmt.Errorf("scanner required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	schedule, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scanner:  scanner,
		spec:     cfg.Schedule,
		schedule: schedule,
		loc:      cfg.Location,
		now:      cfg.Clock,
		logger:   logger.With("component", "scheduler"),
	}, nil
}

// Next returns when the next scheduled pass fires.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.now().In(s.loc))
}

// Start begins firing scheduled passes until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.loopWG.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("Scheduler started", "schedule", s.spec, "timezone", s.loc.String(), "next_pass", s.Next())
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()
	for {
		wait := s.Next().Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Passes may overlap with a slow previous pass; the latches keep
			// that safe.
			s.passWG.Add(1)
			go func() {
				defer s.passWG.Done()
				s.run(ctx, monitor.ScanOptions{Trigger: monitor.TriggerScheduled})
			}()
		}
	}
}

// Trigger runs a pass immediately and waits for it. It works whether or not
// the scheduler is started.
func (s *Scheduler) Trigger(ctx context.Context, opts monitor.ScanOptions) (*monitor.Report, error) {
	opts.Trigger = monitor.TriggerManual
	return s.run(ctx, opts)
}

func (s *Scheduler) run(ctx context.Context, opts monitor.ScanOptions) (*monitor.Report, error) {
	s.passes.Add(1)
	s.lastMu.Lock()
	s.lastPass = s.now()
	s.lastMu.Unlock()

	report, err := s.scanner.Scan(ctx, opts)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("Scan pass failed", "trigger", opts.Trigger, "error", err)
		return nil, err
	}
	return report, nil
}

// Stop halts scheduling and waits for in-flight scheduled passes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.loopWG.Wait()
	s.passWG.Wait()
	s.logger.Info("Scheduler stopped", "passes", s.passes.Load())
}

func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	s.lastMu.RLock()
	last := s.lastPass
	s.lastMu.RUnlock()
	return Stats{
		Passes:   s.passes.Load(),
		Failures: s.failures.Load(),
		LastPass: last,
		NextPass: s.Next(),
		Running:  running,
	}
}

// Package monitor implements the recurring scan over users' savings goals and
// budgets. A scan pass aggregates transactions, evaluates every goal and
// budget, and hands an event to the notifier only after winning the event's
// atomic latch, so any number of sequential or overlapping passes produce each
// notification once.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budgee-monitor/src/metrics"
	"budgee-monitor/src/models"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Config tunes a scan pass.
type Config struct {
	// Workers bounds how many users are evaluated in parallel.
	Workers int
	// UserTimeout bounds all store I/O for one user within a pass.
	UserTimeout time.Duration
	// NearingDeadlineDays is the warning horizon for goals.
	NearingDeadlineDays int
	// Cooldown is how long an exceeded-budget latch is held; zero means until
	// the end of the budget period.
	Cooldown time.Duration
	// Location defines calendar days, weeks and months.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		Workers:             4,
		UserTimeout:         30 * time.Second,
		NearingDeadlineDays: DefaultNearingDeadlineDays,
		Location:            time.UTC,
	}
}

type Deps struct {
	Users         UserLister
	Transactions  TransactionAggregator
	Goals         GoalStore
	Budgets       BudgetSource
	BudgetLatches BudgetLatcher
	Notifier      Notifier
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Clock         func() time.Time
}

type Engine struct {
	users    UserLister
	agg      *Aggregator
	goals    GoalStore
	budgets  BudgetSource
	latches  *Latches
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
}

func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	switch {
	case deps.Users == nil:
		return nil, fmt.Errorf("user lister required")
	case deps.Transactions == nil:
		return nil, fmt.Errorf("transaction aggregator required")
	case deps.Goals == nil:
		return nil, fmt.Errorf("goal store required")
	case deps.Budgets == nil:
		return nil, fmt.Errorf("budget source required")
	case deps.BudgetLatches == nil:
		return nil, fmt.Errorf("budget latch store required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	}

	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = defaults.UserTimeout
	}
	if cfg.NearingDeadlineDays <= 0 {
		cfg.NearingDeadlineDays = defaults.NearingDeadlineDays
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		users:    deps.Users,
		agg:      NewAggregator(deps.Transactions),
		goals:    deps.Goals,
		budgets:  deps.Budgets,
		latches:  NewLatches(deps.Goals, deps.BudgetLatches, CooldownPolicy{Cooldown: cfg.Cooldown}),
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      clock,
		cfg:      cfg,
	}, nil
}

// Aggregator exposes the engine's aggregator for read-only reporting.
func (e *Engine) Aggregator() *Aggregator { return e.agg }

type ScanOptions struct {
	Trigger Trigger
	// UserID restricts the pass to one user when non-zero.
	UserID int64
}

// UserOutcome is the result of evaluating one user within a pass.
type UserOutcome struct {
	UserID           int64    `json:"user_id"`
	GoalsEvaluated   int      `json:"goals_evaluated"`
	BudgetsEvaluated int      `json:"budgets_evaluated"`
	Notified         int      `json:"notified"`
	Suppressed       int      `json:"suppressed"`
	Skipped          []string `json:"skipped,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

func (o UserOutcome) Failed() bool { return len(o.Errors) > 0 }

type Report struct {
	PassID     uuid.UUID     `json:"pass_id"`
	Trigger    Trigger       `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Users      []UserOutcome `json:"users"`
}

func (r *Report) Notified() int {
	n := 0
	for _, u := range r.Users {
		n += u.Notified
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, u := range r.Users {
		if u.Failed() {
			n++
		}
	}
	return n
}

// Scan runs one full pass. It is safe to call concurrently with itself. The
// only error it returns is failure to list users; per-user failures are
// reported in the Report.
func (e *Engine) Scan(ctx context.Context, opts ScanOptions) (*Report, error) {
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}
	now := e.now()
	report := &Report{
		PassID:    uuid.New(),
		Trigger:   opts.Trigger,
		StartedAt: now,
	}
	logger := e.logger.With("pass_id", report.PassID, "trigger", opts.Trigger)

	var userIDs []int64
	if opts.UserID != 0 {
		userIDs = []int64{opts.UserID}
	} else {
		ids, err := e.users.ListUserIDs(ctx)
		if err != nil {
			return nil, dataAccess("list users", err)
		}
		userIDs = ids
	}

	logger.Info("Scan pass started", "users", len(userIDs))

	outcomes := make([]UserOutcome, len(userIDs))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, id := range userIDs {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = e.scanUser(ctx, report.PassID, id, now, logger)
			return nil
		})
	}
	_ = g.Wait()

	report.Users = outcomes
	report.FinishedAt = e.now()
	e.metrics.ObservePass(string(opts.Trigger), report.FinishedAt.Sub(report.StartedAt))

	logger.Info("Scan pass finished",
		"users", len(outcomes),
		"notified", report.Notified(),
		"failed_users", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, nil
}

func (e *Engine) scanUser(ctx context.Context, passID uuid.UUID, userID int64, now time.Time, logger *slog.Logger) UserOutcome {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.UserTimeout)
	defer cancel()

	out := UserOutcome{UserID: userID}
	logger = logger.With("user_id", userID)

	if err := e.scanGoals(ctx, passID, userID, now, &out, logger); err != nil {
		out.Errors = append(out.Errors, err.Error())
		logger.Error("Goal evaluation failed", "error", err)
	}
	if err := e.scanBudgets(ctx, passID, userID, now, &out, logger); err != nil {
		out.Errors = append(out.Errors, err.Error())
		logger.Error("Budget evaluation failed", "error", err)
	}
	if out.Failed() {
		e.metrics.UserFailed()
	}
	return out
}

func (e *Engine) scanGoals(ctx context.Context, passID uuid.UUID, userID int64, now time.Time, out *UserOutcome, logger *slog.Logger) error {
	goals, err := e.goals.ListGoals(ctx, userID)
	if err != nil {
		return dataAccess("list goals", err)
	}

	var errs []error
	for _, g := range goals {
		eval, err := EvaluateGoal(g, now, e.cfg.Location, e.cfg.NearingDeadlineDays)
		if err != nil {
			var invalid *InvalidGoalStateError
			if errors.As(err, &invalid) {
				logger.Warn("Skipping goal", "goal_id", g.ID, "reason", invalid.Reason)
				out.Skipped = append(out.Skipped, err.Error())
				e.metrics.GoalSkipped()
				continue
			}
			return err
		}
		out.GoalsEvaluated++

		for _, c := range eval.Candidates() {
			won, err := e.latches.TryGoal(ctx, g.ID, c.Latch)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !won {
				out.Suppressed++
				e.metrics.LatchHeld(string(c.Payload.Kind()))
				continue
			}
			e.emit(ctx, passID, userID, c.Payload, now, out, logger)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) scanBudgets(ctx context.Context, passID uuid.UUID, userID int64, now time.Time, out *UserOutcome, logger *slog.Logger) error {
	budgets, err := e.budgets.ListBudgets(ctx, userID)
	if err != nil {
		return dataAccess("list budgets", err)
	}

	byPeriod := make(map[models.BudgetPeriod][]models.Budget)
	for _, b := range budgets {
		if err := ValidateBudget(b); err != nil {
			logger.Warn("Skipping budget", "budget_id", b.ID, "error", err)
			out.Skipped = append(out.Skipped, err.Error())
			continue
		}
		byPeriod[b.Period] = append(byPeriod[b.Period], b)
	}

	periods := make([]models.BudgetPeriod, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })

	var errs []error
	for _, period := range periods {
		window := PeriodWindow(period, now, e.cfg.Location)
		spend, err := e.agg.ByCategory(ctx, userID, models.TransactionExpense, window)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, b := range byPeriod[period] {
			out.BudgetsEvaluated++
			spent := decimal.Zero
			if s, ok := spend[b.Category]; ok {
				spent = s.Total
			}
			exceeded, ok := EvaluateBudget(b, spent)
			if !ok {
				continue
			}
			exceeded.WindowStart = window.Start
			exceeded.WindowEnd = window.End

			key := BudgetLatchKey{
				UserID:      userID,
				Category:    b.Category,
				Period:      period,
				BucketStart: window.Start,
			}
			won, err := e.latches.TryBudget(ctx, key, now, window)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !won {
				out.Suppressed++
				e.metrics.LatchHeld(string(EventBudgetExceeded))
				continue
			}
			e.emit(ctx, passID, userID, exceeded, now, out, logger)
		}
	}
	return errors.Join(errs...)
}

// emit hands a latched event to the notifier. A hand-off failure is reported
// and the latch stays set: the notification is lost rather than duplicated.
func (e *Engine) emit(ctx context.Context, passID uuid.UUID, userID int64, p Payload, now time.Time, out *UserOutcome, logger *slog.Logger) {
	n := NewNotification(passID, userID, p, now)
	out.Notified++
	e.metrics.EventEmitted(string(n.Kind))

	if err := e.notifier.Notify(ctx, n); err != nil {
		derr := &DispatchError{Kind: n.Kind, UserID: userID, Err: err}
		out.Errors = append(out.Errors, derr.Error())
		logger.Error("Notification hand-off failed", "notification_id", n.ID, "kind", n.Kind, "error", derr)
		return
	}
	logger.Info("Event raised", "notification_id", n.ID, "kind", n.Kind)
}

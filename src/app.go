package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"budgee-monitor/src/config"
	"budgee-monitor/src/db"
	"budgee-monitor/src/db/memory"
	sqlstore "budgee-monitor/src/db/sql"
	"budgee-monitor/src/metrics"
	"budgee-monitor/src/monitor"
	"budgee-monitor/src/notify"
)

// app holds the long-lived dependencies shared by the serve and scan
// commands.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	loc      *time.Location
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	pool     *pgxpool.Pool
	cache    *db.LatchCache
	store    *sqlstore.Store
	budgets  *config.BudgetFile
	natsConn *nats.Conn
	queue    *notify.Queue
	engine   *monitor.Engine
}

// dryRunStore reads from the database but keeps latches in memory.
type dryRunStore struct {
	*sqlstore.Store
	latches *memory.Latches
}

func (s dryRunStore) TryLatchGoal(ctx context.Context, goalID int64, latch monitor.GoalLatch) (bool, error) {
	return s.latches.TryLatchGoal(ctx, goalID, latch)
}

func (s dryRunStore) TryLatchBudget(ctx context.Context, key monitor.BudgetLatchKey, now, expiresAt time.Time) (bool, error) {
	return s.latches.TryLatchBudget(ctx, key, now, expiresAt)
}

func newApp(cfg config.Config, logger *slog.Logger, dryRun bool) (*app, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, loc: loc, registry: prometheus.NewRegistry()}
	ready := false
	defer func() {
		if !ready {
			a.Close(context.Background())
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	a.pool, err = db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("DB connection failed: %w", err)
	}
	a.cache, err = db.NewLatchCache()
	if err != nil {
		return nil, err
	}
	a.store = sqlstore.NewStore(a.pool, a.cache)

	var budgets monitor.BudgetSource = a.store
	if cfg.BudgetsFile != "" {
		a.budgets, err = config.LoadBudgetFile(cfg.BudgetsFile)
		if err != nil {
			return nil, err
		}
		budgets = a.budgets
	}

	dispatcher, err := a.dispatcher()
	if err != nil {
		return nil, err
	}
	a.queue = notify.NewQueue(dispatcher, notify.QueueConfig{
		Workers: cfg.NotifyWorkers,
		Buffer:  cfg.NotifyBuffer,
		Timeout: cfg.NotifyTimeout,
	}, logger, a.metrics)

	var goals monitor.GoalStore = a.store
	var budgetLatches monitor.BudgetLatcher = a.store
	if dryRun {
		dry := dryRunStore{Store: a.store, latches: memory.NewLatches()}
		goals, budgetLatches = dry, dry
		logger.Info("Dry run: latches are held in memory and not persisted")
	}

	a.engine, err = monitor.NewEngine(monitor.Deps{
		Users:         a.store,
		Transactions:  a.store,
		Goals:         goals,
		Budgets:       budgets,
		BudgetLatches: budgetLatches,
		Notifier:      a.queue,
		Metrics:       a.metrics,
		Logger:        logger.With("component", "monitor"),
	}, monitor.Config{
		Workers:             cfg.ScanWorkers,
		UserTimeout:         cfg.UserScanTimeout,
		NearingDeadlineDays: cfg.NearingDeadlineDays,
		Cooldown:            cfg.BudgetCooldown,
		Location:            loc,
	})
	if err != nil {
		return nil, err
	}
	ready = true
	return a, nil
}

func (a *app) dispatcher() (notify.Dispatcher, error) {
	dispatchers := notify.Multi{notify.NewLogDispatcher(a.logger.With("component", "notifications"))}
	if a.cfg.NotifyWebhookURL != "" {
		dispatchers = append(dispatchers, notify.NewWebhookDispatcher(a.cfg.NotifyWebhookURL, a.cfg.NotifyWebhookSecret, nil))
	}
	if a.cfg.NATSURL != "" {
		conn, err := notify.ConnectNATS(a.cfg.NATSURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.natsConn = conn
		dispatchers = append(dispatchers, notify.NewNATSDispatcher(conn, notify.DefaultSubjectPrefix))
	}
	if len(dispatchers) == 1 {
		return dispatchers[0], nil
	}
	return dispatchers, nil
}

// Close drains pending notifications, then releases connections.
func (a *app) Close(ctx context.Context) {
	if a.queue != nil {
		if err := a.queue.Close(ctx); err != nil {
			a.logger.Warn("Notification queue did not drain", "error", err)
		}
		stats := a.queue.Stats()
		a.logger.Info("Notification queue closed", "dispatched", stats.Dispatched, "failed", stats.Failed, "dropped", stats.Dropped)
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
	a.cache.Close()
	if a.pool != nil {
		a.pool.Close()
	}
}

package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"budgee-monitor/src/db"
	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

// Store adapts the SQL functions in this package to the monitor store
// interfaces. Latches optionally short-circuit through a LatchCache.
type Store struct {
	pool    *pgxpool.Pool
	latches *db.LatchCache
}

func NewStore(pool *pgxpool.Pool, latches *db.LatchCache) *Store {
	return &Store{pool: pool, latches: latches}
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	return ListUserIDs(ctx, s.pool)
}

func (s *Store) Aggregate(ctx context.Context, userID int64, q monitor.Query) (monitor.Sum, error) {
	return AggregateTransactions(ctx, s.pool, userID, q)
}

func (s *Store) AggregateByCategory(ctx context.Context, userID int64, typ models.TransactionType, w monitor.Window) (map[string]monitor.Sum, error) {
	return AggregateTransactionsByCategory(ctx, s.pool, userID, typ, w)
}

func (s *Store) ListGoals(ctx context.Context, userID int64) ([]models.SavingsGoal, error) {
	return GetGoalsForUser(ctx, s.pool, userID)
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	return GetAllBudgetsForUser(ctx, s.pool, userID)
}

func (s *Store) TryLatchGoal(ctx context.Context, goalID int64, latch monitor.GoalLatch) (bool, error) {
	if s.latches.GoalHeld(goalID, latch) {
		return false, nil
	}
	won, err := TryLatchGoal(ctx, s.pool, goalID, latch)
	if err != nil {
		return false, err
	}
	// Held either way from here on.
	s.latches.MarkGoal(goalID, latch)
	return won, nil
}

func (s *Store) TryLatchBudget(ctx context.Context, key monitor.BudgetLatchKey, now, expiresAt time.Time) (bool, error) {
	if s.latches.BudgetHeld(key, now) {
		return false, nil
	}
	won, err := TryLatchBudget(ctx, s.pool, key, now, expiresAt)
	if err != nil {
		return false, err
	}
	if won {
		s.latches.MarkBudget(key, now, expiresAt)
	}
	return won, nil
}

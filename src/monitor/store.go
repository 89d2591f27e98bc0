package monitor

import (
	"context"
	"time"

	"budgee-monitor/src/models"
)

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// TransactionAggregator must answer each call from a single consistent read.
type TransactionAggregator interface {
	Aggregate(ctx context.Context, userID int64, q Query) (Sum, error)
	AggregateByCategory(ctx context.Context, userID int64, typ models.TransactionType, w Window) (map[string]Sum, error)
}

type GoalStore interface {
	ListGoals(ctx context.Context, userID int64) ([]models.SavingsGoal, error)
	// TryLatchGoal sets the named latch if and only if it is currently false,
	// as a single atomic write. It reports whether this call set it.
	TryLatchGoal(ctx context.Context, goalID int64, latch GoalLatch) (bool, error)
}

type BudgetSource interface {
	ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error)
}

type BudgetLatcher interface {
	// TryLatchBudget takes the latch for key unless a holder exists whose
	// expiry is still after now. It reports whether this call took it.
	TryLatchBudget(ctx context.Context, key BudgetLatchKey, now, expiresAt time.Time) (bool, error)
}

// Notifier accepts a notification for delivery. Implementations used by the
// scheduler must not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

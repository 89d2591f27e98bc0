package monitor

import (
	"context"
	"fmt"
	"time"

	"budgee-monitor/src/models"
)

// BudgetLatchKey identifies one cool-down latch: a user's category budget for
// the period bucket starting at BucketStart.
type BudgetLatchKey struct {
	UserID      int64
	Category    string
	Period      models.BudgetPeriod
	BucketStart time.Time
}

func (k BudgetLatchKey) String() string {
	return fmt.Sprintf("budget:%d:%s:%s:%s", k.UserID, k.Period, k.BucketStart.UTC().Format(time.RFC3339), k.Category)
}

// CooldownPolicy decides how long a budget latch stays held. A zero Cooldown
// holds it until the period bucket ends, so an exceeded budget is reported at
// most once per period.
type CooldownPolicy struct {
	Cooldown time.Duration
}

func (p CooldownPolicy) ExpiresAt(now time.Time, bucket Window) time.Time {
	if p.Cooldown <= 0 {
		return bucket.End
	}
	return now.Add(p.Cooldown)
}

// Latches is the only path through which the engine flips notification
// latches. Every method is a single atomic conditional write in the store.
type Latches struct {
	goals   GoalStore
	budgets BudgetLatcher
	policy  CooldownPolicy
}

func NewLatches(goals GoalStore, budgets BudgetLatcher, policy CooldownPolicy) *Latches {
	return &Latches{goals: goals, budgets: budgets, policy: policy}
}

// TryGoal returns true when this caller flipped the latch and may dispatch.
// A false result with a nil error means another writer already fired it.
func (l *Latches) TryGoal(ctx context.Context, goalID int64, latch GoalLatch) (bool, error) {
	switch latch {
	case LatchNotified30Days, LatchClosedNotified:
	default:
		return false, fmt.Errorf("unknown goal latch %q", latch)
	}
	won, err := l.goals.TryLatchGoal(ctx, goalID, latch)
	if err != nil {
		return false, dataAccess("latch goal", err)
	}
	return won, nil
}

func (l *Latches) TryBudget(ctx context.Context, key BudgetLatchKey, now time.Time, bucket Window) (bool, error) {
	won, err := l.budgets.TryLatchBudget(ctx, key, now, l.policy.ExpiresAt(now, bucket))
	if err != nil {
		return false, dataAccess("latch budget", err)
	}
	return won, nil
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgee-monitor/src/monitor"
)

// Latches holds goal and budget latches in process memory only. Paired with a
// read-only data source it gives a dry run: events are evaluated and latched
// for the life of the process, but nothing is persisted.
type Latches struct {
	mu      sync.Mutex
	goals   map[string]bool
	budgets map[string]time.Time
}

func NewLatches() *Latches {
	return &Latches{
		goals:   make(map[string]bool),
		budgets: make(map[string]time.Time),
	}
}

func (l *Latches) TryLatchGoal(ctx context.Context, goalID int64, latch monitor.GoalLatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := fmt.Sprintf("%d:%s", goalID, latch)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.goals[k] {
		return false, nil
	}
	l.goals[k] = true
	return true, nil
}

func (l *Latches) TryLatchBudget(ctx context.Context, key monitor.BudgetLatchKey, now, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := key.String()
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.budgets[k]; ok && held.After(now) {
		return false, nil
	}
	l.budgets[k] = expiresAt
	return true, nil
}

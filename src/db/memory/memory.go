// Package memory is an in-process implementation of the monitor stores. Each
// method holds the store lock for its whole read or read-modify-write, which
// gives the same snapshot and conditional-write guarantees as the Postgres
// store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

type budgetLatch struct {
	latchedAt time.Time
	expiresAt time.Time
}

type Store struct {
	mu sync.RWMutex

	nextID       int64
	users        map[int64]models.User
	transactions []models.Transaction
	goals        map[int64]*models.SavingsGoal
	budgets      map[int64]models.Budget
	latches      map[string]budgetLatch
}

func NewStore() *Store {
	return &Store{
		users:   make(map[int64]models.User),
		goals:   make(map[int64]*models.SavingsGoal),
		budgets: make(map[int64]models.Budget),
		latches: make(map[string]budgetLatch),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.id()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) AddTransaction(tx models.Transaction) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = s.id()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.transactions = append(s.transactions, tx)
	return tx
}

func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) Aggregate(ctx context.Context, userID int64, q monitor.Query) (monitor.Sum, error) {
	if err := ctx.Err(); err != nil {
		return monitor.Sum{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return monitor.SumTransactions(s.transactions, userID, q), nil
}

func (s *Store) AggregateByCategory(ctx context.Context, userID int64, typ models.TransactionType, w monitor.Window) (map[string]monitor.Sum, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return monitor.GroupByCategory(s.transactions, userID, typ, w), nil
}

func (s *Store) AddGoal(g models.SavingsGoal) models.SavingsGoal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		g.ID = s.id()
	}
	stored := g
	s.goals[g.ID] = &stored
	return g
}

func (s *Store) Goal(id int64) (models.SavingsGoal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return models.SavingsGoal{}, false
	}
	return *g, true
}

func (s *Store) ListGoals(ctx context.Context, userID int64) ([]models.SavingsGoal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SavingsGoal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordContribution stores a savings transaction tagged to the goal and adds
// its amount to the goal's current amount in one step.
func (s *Store) RecordContribution(ctx context.Context, userID, goalID int64, amount decimal.Decimal, at time.Time) (models.SavingsGoal, error) {
	if err := ctx.Err(); err != nil {
		return models.SavingsGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return models.SavingsGoal{}, fmt.Errorf("goal not found")
	}
	gid := goalID
	s.transactions = append(s.transactions, models.Transaction{
		ID:          s.id(),
		UserID:      userID,
		GoalID:      &gid,
		Description: "Contribution to " + g.Name,
		Amount:      amount,
		Type:        models.TransactionSavings,
		Category:    "Savings",
		DateTime:    at,
		CreatedAt:   time.Now(),
	})
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	return *g, nil
}

func (s *Store) TryLatchGoal(ctx context.Context, goalID int64, latch monitor.GoalLatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok {
		return false, nil
	}
	switch latch {
	case monitor.LatchNotified30Days:
		if g.Notified30Days {
			return false, nil
		}
		g.Notified30Days = true
	case monitor.LatchClosedNotified:
		if g.ClosedNotified {
			return false, nil
		}
		g.ClosedNotified = true
	default:
		return false, fmt.Errorf("unknown goal latch %q", latch)
	}
	return true, nil
}

func (s *Store) AddBudget(b models.Budget) models.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	s.budgets[b.ID] = b
	return b
}

func (s *Store) ListBudgets(ctx context.Context, userID int64) ([]models.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TryLatchBudget(ctx context.Context, key monitor.BudgetLatchKey, now, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if held, ok := s.latches[k]; ok && held.expiresAt.After(now) {
		return false, nil
	}
	s.latches[k] = budgetLatch{latchedAt: now, expiresAt: expiresAt}
	return true, nil
}

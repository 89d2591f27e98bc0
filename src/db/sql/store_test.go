package db_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/db"
	sqlstore "budgee-monitor/src/db/sql"
	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

// connect returns a migrated pool, or skips when no test database is
// configured.
func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := db.Connect(url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(context.Background(), pool))
	return pool
}

func newUser(t *testing.T, pool *pgxpool.Pool) *models.User {
	t.Helper()
	u, err := sqlstore.CreateUser(context.Background(), pool, &models.User{
		Name:  "monitor-test",
		Email: fmt.Sprintf("monitor-%d@example.com", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID)
	})
	return u
}

func TestAggregateTransactions(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	user := newUser(t, pool)

	oct := time.Date(2026, time.October, 5, 12, 0, 0, 0, time.UTC)
	for _, tx := range []models.Transaction{
		{Amount: decimal.RequireFromString("40.10"), Type: models.TransactionExpense, Category: "Food", DateTime: oct},
		{Amount: decimal.RequireFromString("9.90"), Type: models.TransactionExpense, Category: "Food", DateTime: oct.AddDate(0, 0, 3)},
		{Amount: decimal.RequireFromString("70"), Type: models.TransactionExpense, Category: "Fuel", DateTime: oct},
		{Amount: decimal.RequireFromString("500"), Type: models.TransactionExpense, Category: "Food", DateTime: oct.AddDate(0, -1, 0)},
	} {
		tx.UserID = user.ID
		_, err := sqlstore.CreateTransaction(ctx, pool, &tx)
		require.NoError(t, err)
	}

	food := "Food"
	window := monitor.MonthWindow(oct, time.UTC)
	sum, err := sqlstore.AggregateTransactions(ctx, pool, user.ID, monitor.Query{Type: models.TransactionExpense, Category: &food, Window: window})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50").Equal(sum.Total), sum.Total.String())
	assert.Equal(t, 2, sum.Count)

	byCategory, err := sqlstore.AggregateTransactionsByCategory(ctx, pool, user.ID, models.TransactionExpense, window)
	require.NoError(t, err)
	assert.Len(t, byCategory, 2)
	assert.True(t, decimal.RequireFromString("70").Equal(byCategory["Fuel"].Total))

	empty, err := sqlstore.AggregateTransactions(ctx, pool, user.ID, monitor.Query{Type: models.TransactionIncome, Window: window})
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
}

func TestTryLatchGoal_ConcurrentWritersSingleWinner(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	user := newUser(t, pool)
	goal, err := sqlstore.CreateGoal(ctx, pool, &models.SavingsGoal{
		UserID: user.ID, Name: "Bike",
		TargetAmount: decimal.NewFromInt(1000), CurrentAmount: decimal.NewFromInt(950),
		TargetDate: time.Now().AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := sqlstore.TryLatchGoal(ctx, pool, goal.ID, monitor.LatchNotified30Days)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	stored, err := sqlstore.GetGoalByID(ctx, pool, user.ID, goal.ID)
	require.NoError(t, err)
	assert.True(t, stored.Notified30Days)
	assert.False(t, stored.ClosedNotified)
}

func TestTryLatchBudget_Cooldown(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	user := newUser(t, pool)

	now := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	key := monitor.BudgetLatchKey{
		UserID: user.ID, Category: "Dining", Period: models.BudgetMonthly,
		BucketStart: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
	}

	won, err := sqlstore.TryLatchBudget(ctx, pool, key, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, won)

	won, err = sqlstore.TryLatchBudget(ctx, pool, key, now.Add(time.Hour), now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.False(t, won)

	won, err = sqlstore.TryLatchBudget(ctx, pool, key, now.Add(24*time.Hour), now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, won)
}

func TestRecordContribution(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	user := newUser(t, pool)
	goal, err := sqlstore.CreateGoal(ctx, pool, &models.SavingsGoal{
		UserID: user.ID, Name: "Laptop",
		TargetAmount: decimal.NewFromInt(500), CurrentAmount: decimal.NewFromInt(450),
		TargetDate: time.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	at := time.Now().UTC()
	updated, err := sqlstore.RecordContribution(ctx, pool, user.ID, goal.ID, decimal.NewFromInt(50), at)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(updated.CurrentAmount))

	txs, err := sqlstore.GetTransactionsForUser(ctx, pool, user.ID, monitor.Window{Start: at.Add(-time.Minute), End: at.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].GoalID)
	assert.Equal(t, goal.ID, *txs[0].GoalID)
	assert.Equal(t, models.TransactionSavings, txs[0].Type)

	_, err = sqlstore.RecordContribution(ctx, pool, user.ID+1000000, goal.ID, decimal.NewFromInt(1), at)
	assert.Error(t, err)
}

func TestStore_LatchCacheShortCircuits(t *testing.T) {
	pool := connect(t)
	ctx := context.Background()
	user := newUser(t, pool)
	cache, err := db.NewLatchCache()
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	store := sqlstore.NewStore(pool, cache)
	goal, err := sqlstore.CreateGoal(ctx, pool, &models.SavingsGoal{
		UserID: user.ID, Name: "Trip",
		TargetAmount: decimal.NewFromInt(10), CurrentAmount: decimal.NewFromInt(10),
		TargetDate: time.Now().AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	won, err := store.TryLatchGoal(ctx, goal.ID, monitor.LatchClosedNotified)
	require.NoError(t, err)
	assert.True(t, won)
	assert.True(t, cache.GoalHeld(goal.ID, monitor.LatchClosedNotified))

	won, err = store.TryLatchGoal(ctx, goal.ID, monitor.LatchClosedNotified)
	require.NoError(t, err)
	assert.False(t, won)
}

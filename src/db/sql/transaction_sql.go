package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

const transactionColumns = `id, user_id, goal_id, description, amount, type, category, date_time, created_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(&tx.ID, &tx.UserID, &tx.GoalID, &tx.Description, &tx.Amount, &tx.Type, &tx.Category, &tx.DateTime, &tx.CreatedAt)
	return tx, err
}

func CreateTransaction(ctx context.Context, pool *pgxpool.Pool, tx *models.Transaction) (*models.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, goal_id, description, amount, type, category, date_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + transactionColumns
	created, err := scanTransaction(pool.QueryRow(ctx, query,
		tx.UserID, tx.GoalID, tx.Description, tx.Amount, tx.Type, tx.Category, tx.DateTime))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func GetTransactionsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64, w monitor.Window) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND date_time >= $2 AND date_time < $3
		ORDER BY date_time DESC
	`
	rows, err := pool.Query(ctx, query, userID, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// AggregateTransactions sums matching transactions in a single statement, so
// the result is one consistent snapshot.
func AggregateTransactions(ctx context.Context, pool *pgxpool.Pool, userID int64, q monitor.Query) (monitor.Sum, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND type = $2
		  AND date_time >= $3 AND date_time < $4
		  AND ($5::text IS NULL OR category = $5)
	`
	var sum monitor.Sum
	err := pool.QueryRow(ctx, query, userID, q.Type, q.Window.Start, q.Window.End, q.Category).
		Scan(&sum.Total, &sum.Count)
	if err != nil {
		return monitor.Sum{}, err
	}
	return sum, nil
}

func AggregateTransactionsByCategory(ctx context.Context, pool *pgxpool.Pool, userID int64, typ models.TransactionType, w monitor.Window) (map[string]monitor.Sum, error) {
	query := `
		SELECT category, SUM(amount), COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND type = $2 AND date_time >= $3 AND date_time < $4
		GROUP BY category
	`
	rows, err := pool.Query(ctx, query, userID, typ, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]monitor.Sum)
	for rows.Next() {
		var category string
		var sum monitor.Sum
		if err := rows.Scan(&category, &sum.Total, &sum.Count); err != nil {
			return nil, err
		}
		out[category] = sum
	}
	return out, rows.Err()
}

// RecordContribution inserts a savings transaction tagged with the goal and
// adds its amount to the goal's current amount in one database transaction.
func RecordContribution(ctx context.Context, pool *pgxpool.Pool, userID, goalID int64, amount decimal.Decimal, at time.Time) (*models.SavingsGoal, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE savings_goals
		SET current_amount = current_amount + $1
		WHERE id = $2 AND user_id = $3
		RETURNING ` + goalColumns
	goal, err := scanGoal(tx.QueryRow(ctx, update, amount, goalID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("goal not found")
		}
		return nil, err
	}

	insert := `
		INSERT INTO transactions (user_id, goal_id, description, amount, type, category, date_time)
		VALUES ($1, $2, $3, $4, $5, 'Savings', $6)
	`
	_, err = tx.Exec(ctx, insert, userID, goalID, "Contribution to "+goal.Name, amount, models.TransactionSavings, at)
	if err != nil {
		return nil, fmt.Errorf("insert contribution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &goal, nil
}

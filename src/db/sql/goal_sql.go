package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, notified_30_days, closed_notified, created_at`

func scanGoal(row pgx.Row) (models.SavingsGoal, error) {
	var g models.SavingsGoal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.TargetDate, &g.Notified30Days, &g.ClosedNotified, &g.CreatedAt)
	return g, err
}

func CreateGoal(ctx context.Context, pool *pgxpool.Pool, goal *models.SavingsGoal) (*models.SavingsGoal, error) {
	query := `
		INSERT INTO savings_goals (user_id, name, target_amount, current_amount, target_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + goalColumns
	g, err := scanGoal(pool.QueryRow(ctx, query, goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount, goal.TargetDate))
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func GetGoalByID(ctx context.Context, pool *pgxpool.Pool, userID, goalID int64) (*models.SavingsGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE id = $1 AND user_id = $2`
	g, err := scanGoal(pool.QueryRow(ctx, query, goalID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("goal not found")
		}
		return nil, err
	}
	return &g, nil
}

func GetGoalsForUser(ctx context.Context, pool *pgxpool.Pool, userID int64) ([]models.SavingsGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE user_id = $1 ORDER BY id`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []models.SavingsGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// TryLatchGoal flips one latch column from false to true. Exactly one caller
// sees a row affected.
func TryLatchGoal(ctx context.Context, pool *pgxpool.Pool, goalID int64, latch monitor.GoalLatch) (bool, error) {
	var query string
	switch latch {
	case monitor.LatchNotified30Days:
		query = `UPDATE savings_goals SET notified_30_days = TRUE WHERE id = $1 AND notified_30_days = FALSE`
	case monitor.LatchClosedNotified:
		query = `UPDATE savings_goals SET closed_notified = TRUE WHERE id = $1 AND closed_notified = FALSE`
	default:
		return false, fmt.Errorf("unknown goal latch %q", latch)
	}
	cmd, err := pool.Exec(ctx, query, goalID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

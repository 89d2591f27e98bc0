package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"budgee-monitor/src/monitor"
)

// TryLatchBudget claims the cool-down latch for key. The row is inserted, or
// taken over only when the previous holder has expired; any other conflict
// leaves it untouched and returns no row.
func TryLatchBudget(ctx context.Context, pool *pgxpool.Pool, key monitor.BudgetLatchKey, now, expiresAt time.Time) (bool, error) {
	query := `
		INSERT INTO budget_alert_latches (user_id, category, period, bucket_start, latched_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, category, period, bucket_start) DO UPDATE
		SET latched_at = EXCLUDED.latched_at, expires_at = EXCLUDED.expires_at
		WHERE budget_alert_latches.expires_at <= EXCLUDED.latched_at
		RETURNING user_id
	`
	var userID int64
	err := pool.QueryRow(ctx, query, key.UserID, key.Category, key.Period, key.BucketStart, now, expiresAt).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PurgeExpiredLatches removes budget latches that can no longer suppress
// anything.
func PurgeExpiredLatches(ctx context.Context, pool *pgxpool.Pool, now time.Time) (int64, error) {
	cmd, err := pool.Exec(ctx, `DELETE FROM budget_alert_latches WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

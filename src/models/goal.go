package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal carries two one-way notification latches. Once either flag is
// true it is never reset.
type SavingsGoal struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Name           string          `json:"name"`
	TargetAmount   decimal.Decimal `json:"target_amount"`
	CurrentAmount  decimal.Decimal `json:"current_amount"`
	TargetDate     time.Time       `json:"target_date"`
	Notified30Days bool            `json:"notified_30_days"`
	ClosedNotified bool            `json:"closed_notified"`
	CreatedAt      time.Time       `json:"created_at"`
}

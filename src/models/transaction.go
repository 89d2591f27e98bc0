package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
	TransactionSavings TransactionType = "savings"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionSavings:
		return true
	}
	return false
}

// Transaction is immutable once stored. GoalID is only set on savings
// transactions recorded as a contribution to a goal.
type Transaction struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	GoalID      *int64          `json:"goal_id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	DateTime    time.Time       `json:"date_time"`
	CreatedAt   time.Time       `json:"created_at"`
}

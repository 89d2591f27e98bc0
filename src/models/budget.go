package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BudgetPeriod string

const (
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
)

func (p BudgetPeriod) Valid() bool {
	return p == BudgetWeekly || p == BudgetMonthly
}

// Budget is a spending limit for one category. Spent is never stored; it is
// recomputed from transactions on every evaluation.
type Budget struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	Period    BudgetPeriod    `json:"period"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

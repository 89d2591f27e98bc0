package monitor

import (
	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
)

func ValidateBudget(b models.Budget) error {
	switch {
	case b.Category == "":
		return &InvalidBudgetError{BudgetID: b.ID, Reason: "category is required"}
	case !b.Limit.IsPositive():
		return &InvalidBudgetError{BudgetID: b.ID, Category: b.Category, Reason: "limit must be positive"}
	case !b.Period.Valid():
		return &InvalidBudgetError{BudgetID: b.ID, Category: b.Category, Reason: "unknown period " + string(b.Period)}
	}
	return nil
}

// EvaluateBudget reports an exceeded candidate iff spend is strictly above the
// limit. It is level-triggered: repeats across passes are suppressed by the
// budget latch, not here.
func EvaluateBudget(b models.Budget, spend decimal.Decimal) (BudgetExceeded, bool) {
	if !spend.GreaterThan(b.Limit) {
		return BudgetExceeded{}, false
	}
	return BudgetExceeded{
		BudgetID:   b.ID,
		Category:   b.Category,
		Period:     b.Period,
		Limit:      b.Limit,
		Spent:      spend,
		ExceededBy: spend.Sub(b.Limit),
	}, true
}

package util

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
)

var categoryRe = regexp.MustCompile(`^[\p{L}\p{N} &'/_\-]{1,64}$`)

func ValidateCategory(category string) bool {
	return categoryRe.MatchString(strings.TrimSpace(category))
}

// ValidateAmount accepts positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func ValidateName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n >= 1 && n <= 100
}

func ValidateTransaction(tx *models.Transaction) string {
	switch {
	case !tx.Type.Valid():
		return "type must be income, expense or savings"
	case !ValidateAmount(tx.Amount):
		return "amount must be positive with at most two decimals"
	case !ValidateCategory(tx.Category):
		return "invalid category"
	case tx.DateTime.IsZero():
		return "date_time is required"
	}
	return ""
}

func ValidateBudget(b *models.Budget) string {
	switch {
	case !ValidateCategory(b.Category):
		return "invalid category"
	case !ValidateAmount(b.Limit):
		return "limit must be positive with at most two decimals"
	case !b.Period.Valid():
		return "period must be weekly or monthly"
	}
	return ""
}

func ValidateGoal(g *models.SavingsGoal, now time.Time) string {
	switch {
	case !ValidateName(g.Name):
		return "invalid name"
	case !ValidateAmount(g.TargetAmount):
		return "target_amount must be positive with at most two decimals"
	case g.CurrentAmount.IsNegative():
		return "current_amount must not be negative"
	case g.TargetDate.IsZero():
		return "target_date is required"
	case g.TargetDate.Before(now.AddDate(-1, 0, 0)):
		return "target_date is too far in the past"
	}
	return ""
}

package monitor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

func TestEvaluateBudget(t *testing.T) {
	b := models.Budget{ID: 3, Category: "Dining", Limit: dec("200"), Period: models.BudgetMonthly}

	exceeded, ok := monitor.EvaluateBudget(b, dec("250"))
	require.True(t, ok)
	assert.Equal(t, "50", exceeded.ExceededBy.String())
	assert.Equal(t, "Dining", exceeded.Category)
	assert.Equal(t, monitor.EventBudgetExceeded, exceeded.Kind())

	_, ok = monitor.EvaluateBudget(b, dec("200"))
	assert.False(t, ok, "spend equal to the limit is not exceeded")

	_, ok = monitor.EvaluateBudget(b, dec("0"))
	assert.False(t, ok)

	exceeded, ok = monitor.EvaluateBudget(b, dec("200.01"))
	require.True(t, ok)
	assert.Equal(t, "0.01", exceeded.ExceededBy.String())
}

func TestValidateBudget(t *testing.T) {
	assert.NoError(t, monitor.ValidateBudget(models.Budget{Category: "Dining", Limit: dec("1"), Period: models.BudgetWeekly}))

	var invalid *monitor.InvalidBudgetError
	assert.ErrorAs(t, monitor.ValidateBudget(models.Budget{Category: "Dining", Limit: dec("0"), Period: models.BudgetWeekly}), &invalid)
	assert.ErrorAs(t, monitor.ValidateBudget(models.Budget{Category: "", Limit: dec("5"), Period: models.BudgetWeekly}), &invalid)
	assert.ErrorAs(t, monitor.ValidateBudget(models.Budget{Category: "Dining", Limit: dec("5"), Period: "yearly"}), &invalid)
}

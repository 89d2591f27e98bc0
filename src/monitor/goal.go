package monitor

import (
	"time"

	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
)

type GoalState string

const (
	GoalOnTrack         GoalState = "ON_TRACK"
	GoalNearingDeadline GoalState = "NEARING_DEADLINE"
	GoalCompleted       GoalState = "COMPLETED"
	GoalOverdue         GoalState = "OVERDUE"
)

// Terminal states share the closed latch.
func (s GoalState) Terminal() bool {
	return s == GoalCompleted || s == GoalOverdue
}

// GoalLatch names a persisted one-way flag on a savings goal.
type GoalLatch string

const (
	LatchNotified30Days GoalLatch = "notified_30_days"
	LatchClosedNotified GoalLatch = "closed_notified"
)

const DefaultNearingDeadlineDays = 30

type GoalEvaluation struct {
	Goal          models.SavingsGoal
	State         GoalState
	Remaining     decimal.Decimal
	DaysRemaining int
}

// GoalCandidate is an event the evaluator found, pending the latch.
type GoalCandidate struct {
	Latch   GoalLatch
	Payload Payload
}

func ValidateGoal(g models.SavingsGoal) error {
	switch {
	case !g.TargetAmount.IsPositive():
		return &InvalidGoalStateError{GoalID: g.ID, Reason: "target amount must be positive"}
	case g.CurrentAmount.IsNegative():
		return &InvalidGoalStateError{GoalID: g.ID, Reason: "current amount is negative"}
	case g.TargetDate.IsZero():
		return &InvalidGoalStateError{GoalID: g.ID, Reason: "target date is missing"}
	}
	return nil
}

// DaysUntil counts whole calendar days from the date of now in loc to the
// calendar date of target. Target dates are dates, so their own location is
// kept rather than converting into loc.
func DaysUntil(now, target time.Time, loc *time.Location) int {
	ny, nm, nd := now.In(loc).Date()
	ty, tm, td := target.Date()
	from := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// EvaluateGoal classifies g as of now. The state is derived fresh every call
// and never stored.
func EvaluateGoal(g models.SavingsGoal, now time.Time, loc *time.Location, nearingDays int) (GoalEvaluation, error) {
	if err := ValidateGoal(g); err != nil {
		return GoalEvaluation{}, err
	}
	if nearingDays <= 0 {
		nearingDays = DefaultNearingDeadlineDays
	}

	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	days := DaysUntil(now, g.TargetDate, loc)

	var state GoalState
	switch {
	case remaining.IsZero():
		state = GoalCompleted
	case days < 0:
		state = GoalOverdue
	case days <= nearingDays:
		state = GoalNearingDeadline
	default:
		state = GoalOnTrack
	}

	return GoalEvaluation{
		Goal:          g,
		State:         state,
		Remaining:     remaining,
		DaysRemaining: days,
	}, nil
}

// Candidates lists the events this evaluation warrants. A candidate is only
// produced while its latch is still false.
func (e GoalEvaluation) Candidates() []GoalCandidate {
	g := e.Goal
	switch {
	case e.State == GoalNearingDeadline && !g.Notified30Days:
		return []GoalCandidate{{
			Latch: LatchNotified30Days,
			Payload: Goal30DayWarning{
				GoalID:        g.ID,
				GoalName:      g.Name,
				TargetAmount:  g.TargetAmount,
				CurrentAmount: g.CurrentAmount,
				Remaining:     e.Remaining,
				TargetDate:    g.TargetDate,
				DaysRemaining: e.DaysRemaining,
			},
		}}
	case e.State.Terminal() && !g.ClosedNotified:
		return []GoalCandidate{{
			Latch: LatchClosedNotified,
			Payload: GoalClosed{
				GoalID:        g.ID,
				GoalName:      g.Name,
				State:         e.State,
				TargetAmount:  g.TargetAmount,
				CurrentAmount: g.CurrentAmount,
				Remaining:     e.Remaining,
				TargetDate:    g.TargetDate,
				DaysRemaining: e.DaysRemaining,
			},
		}}
	}
	return nil
}

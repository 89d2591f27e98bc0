package monitor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
)

// EventKind names one of the notification events the engine can raise.
type EventKind string

const (
	EventGoal30DayWarning EventKind = "Goal30DayWarning"
	EventGoalClosed       EventKind = "GoalClosed"
	EventBudgetExceeded   EventKind = "BudgetExceeded"
)

// Payload is implemented only by the event structs in this file, so the set
// of kinds a dispatcher may receive is closed.
type Payload interface {
	Kind() EventKind
	payload()
}

type Goal30DayWarning struct {
	GoalID        int64           `json:"goal_id"`
	GoalName      string          `json:"goal_name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	TargetDate    time.Time       `json:"target_date"`
	DaysRemaining int             `json:"days_remaining"`
}

func (Goal30DayWarning) Kind() EventKind { return EventGoal30DayWarning }
func (Goal30DayWarning) payload()        {}

// GoalClosed is raised once when a goal leaves active monitoring, either
// because it was reached (COMPLETED) or its date passed (OVERDUE).
type GoalClosed struct {
	GoalID        int64           `json:"goal_id"`
	GoalName      string          `json:"goal_name"`
	State         GoalState       `json:"state"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Remaining     decimal.Decimal `json:"remaining"`
	TargetDate    time.Time       `json:"target_date"`
	DaysRemaining int             `json:"days_remaining"`
}

func (GoalClosed) Kind() EventKind { return EventGoalClosed }
func (GoalClosed) payload()        {}

type BudgetExceeded struct {
	BudgetID    int64               `json:"budget_id"`
	Category    string              `json:"category"`
	Period      models.BudgetPeriod `json:"period"`
	Limit       decimal.Decimal     `json:"limit"`
	Spent       decimal.Decimal     `json:"spent"`
	ExceededBy  decimal.Decimal     `json:"exceeded_by"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
}

func (BudgetExceeded) Kind() EventKind { return EventBudgetExceeded }
func (BudgetExceeded) payload()        {}

// Notification is what the engine hands to the notifier after it has won the
// latch for an event.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	PassID     uuid.UUID `json:"pass_id"`
	UserID     int64     `json:"user_id"`
	Kind       EventKind `json:"kind"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewNotification(passID uuid.UUID, userID int64, p Payload, at time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		PassID:     passID,
		UserID:     userID,
		Kind:       p.Kind(),
		Payload:    p,
		OccurredAt: at,
	}
}

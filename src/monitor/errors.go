package monitor

import (
	"errors"
	"fmt"
)

var ErrUserRequired = errors.New("user id is required")

// DataAccessError wraps a store failure (unreachable, timed out). The work is
// retried on the next scheduled pass, never within the same pass.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access: %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

func dataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Err: err}
}

// InvalidGoalStateError marks a goal whose stored data cannot be evaluated.
// The goal is skipped and the scan continues.
type InvalidGoalStateError struct {
	GoalID int64
	Reason string
}

func (e *InvalidGoalStateError) Error() string {
	return fmt.Sprintf("goal %d: invalid state: %s", e.GoalID, e.Reason)
}

type InvalidBudgetError struct {
	BudgetID int64
	Category string
	Reason   string
}

func (e *InvalidBudgetError) Error() string {
	return fmt.Sprintf("budget %d (%s): invalid: %s", e.BudgetID, e.Category, e.Reason)
}

// DispatchError reports a notification that was latched but could not be
// handed off or delivered. The latch is not rolled back.
type DispatchError struct {
	Kind   EventKind
	UserID int64
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for user %d: %v", e.Kind, e.UserID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgee-monitor/src/monitor"
)

// Multi fans a notification out to every dispatcher. One failing dispatcher
// does not stop the others.
type Multi []Dispatcher

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, d := range m {
		names[i] = d.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Dispatch(ctx context.Context, n monitor.Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"budgee-monitor/src/models"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Query selects transactions for aggregation. An empty Type matches every
// type and a nil Category matches every category.
type Query struct {
	Type     models.TransactionType
	Category *string
	Window   Window
}

func (q Query) Matches(tx models.Transaction) bool {
	if q.Type != "" && tx.Type != q.Type {
		return false
	}
	if q.Category != nil && tx.Category != *q.Category {
		return false
	}
	return q.Window.Contains(tx.DateTime)
}

type Sum struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (s Sum) Add(amount decimal.Decimal) Sum {
	return Sum{Total: s.Total.Add(amount), Count: s.Count + 1}
}

// SumTransactions totals the transactions of userID that match q.
func SumTransactions(txs []models.Transaction, userID int64, q Query) Sum {
	sum := Sum{Total: decimal.Zero}
	for _, tx := range txs {
		if tx.UserID == userID && q.Matches(tx) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// GroupByCategory totals the transactions of userID with the given type in w,
// keyed by category.
func GroupByCategory(txs []models.Transaction, userID int64, typ models.TransactionType, w Window) map[string]Sum {
	q := Query{Type: typ, Window: w}
	out := make(map[string]Sum)
	for _, tx := range txs {
		if tx.UserID != userID || !q.Matches(tx) {
			continue
		}
		s, ok := out[tx.Category]
		if !ok {
			s = Sum{Total: decimal.Zero}
		}
		out[tx.Category] = s.Add(tx.Amount)
	}
	return out
}

// MonthWindow covers the calendar month containing t, in loc.
func MonthWindow(t time.Time, loc *time.Location) Window {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// WeekWindow covers the ISO week (Monday 00:00 onwards) containing t, in loc.
func WeekWindow(t time.Time, loc *time.Location) Window {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func PeriodWindow(p models.BudgetPeriod, now time.Time, loc *time.Location) Window {
	if p == models.BudgetWeekly {
		return WeekWindow(now, loc)
	}
	return MonthWindow(now, loc)
}

type MonthlyTotal struct {
	Month time.Time       `json:"month"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Aggregator computes per-user sums over the transaction store and wraps store
// failures as DataAccessError.
type Aggregator struct {
	store TransactionAggregator
}

func NewAggregator(store TransactionAggregator) *Aggregator {
	return &Aggregator{store: store}
}

func (a *Aggregator) Aggregate(ctx context.Context, userID int64, q Query) (Sum, error) {
	if userID == 0 {
		return Sum{}, ErrUserRequired
	}
	sum, err := a.store.Aggregate(ctx, userID, q)
	if err != nil {
		return Sum{}, dataAccess("aggregate transactions", err)
	}
	return sum, nil
}

func (a *Aggregator) ByCategory(ctx context.Context, userID int64, typ models.TransactionType, w Window) (map[string]Sum, error) {
	if userID == 0 {
		return nil, ErrUserRequired
	}
	sums, err := a.store.AggregateByCategory(ctx, userID, typ, w)
	if err != nil {
		return nil, dataAccess("aggregate by category", err)
	}
	if sums == nil {
		sums = map[string]Sum{}
	}
	return sums, nil
}

// Monthly returns one total per calendar month for the last n months,
// oldest first, ending with the month containing now.
func (a *Aggregator) Monthly(ctx context.Context, userID int64, typ models.TransactionType, n int, now time.Time, loc *time.Location) ([]MonthlyTotal, error) {
	current := MonthWindow(now, loc)
	out := make([]MonthlyTotal, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := current.Start.AddDate(0, -i, 0)
		w := Window{Start: start, End: start.AddDate(0, 1, 0)}
		sum, err := a.Aggregate(ctx, userID, Query{Type: typ, Window: w})
		if err != nil {
			return nil, err
		}
		out = append(out, MonthlyTotal{
			Month: start,
			Name:  start.Format("Jan"),
			Total: sum.Total,
			Count: sum.Count,
		})
	}
	return out, nil
}

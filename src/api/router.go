package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"budgee-monitor/src/handlers"
	"budgee-monitor/src/middleware"
	"budgee-monitor/src/monitor"
)

type RouterDeps struct {
	Pool           *pgxpool.Pool
	Aggregator     *monitor.Aggregator
	Scans          handlers.ScanTrigger
	Gatherer       prometheus.Gatherer
	JWTSecret      []byte
	AllowedOrigins []string
	Location       *time.Location
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		// Protected routes
		r.With(middleware.JWTAuthMiddleware(deps.JWTSecret)).Group(func(r chi.Router) {
			r.Get("/users/me", handlers.GetCurrentUser(deps.Pool))

			// Transactions
			r.Post("/transactions", handlers.CreateTransaction(deps.Pool))
			r.Get("/transactions", handlers.GetTransactions(deps.Pool, deps.Location))
			r.Get("/transactions/monthly", handlers.GetMonthlyTotals(deps.Aggregator, deps.Location, time.Now))

			// Savings goals
			r.Post("/goals", handlers.CreateGoal(deps.Pool))
			r.Get("/goals", handlers.GetGoals(deps.Pool))
			r.Post("/goals/{goal_id}/contributions", handlers.AddContribution(deps.Pool))

			// Budget
			r.Post("/budgets", handlers.CreateBudget(deps.Pool))
			r.Get("/budgets", handlers.GetAllBudgetsForUser(deps.Pool))
			r.Get("/budgets/{budget_id}", handlers.GetBudgetByID(deps.Pool))
			r.Put("/budgets/{budget_id}", handlers.UpdateBudget(deps.Pool))
			r.Delete("/budgets/{budget_id}", handlers.DeleteBudget(deps.Pool))
		})

		// Admin routes
		r.With(middleware.JWTAuthMiddleware(deps.JWTSecret), middleware.AdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/scan", handlers.TriggerScan(deps.Scans))
			r.Get("/admin/scan/status", handlers.GetScanStatus(deps.Scans))
		})
	})

	return r
}

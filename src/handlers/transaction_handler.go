package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	db "budgee-monitor/src/db/sql"
	"budgee-monitor/src/middleware"
	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
	"budgee-monitor/src/util"
)

type transactionRequest struct {
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"type"`
	Category    string                 `json:"category"`
	DateTime    time.Time              `json:"date_time"`
}

func CreateTransaction(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req transactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create transaction request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		tx := &models.Transaction{
			UserID:      userID,
			Description: req.Description,
			Amount:      req.Amount,
			Type:        req.Type,
			Category:    req.Category,
			DateTime:    req.DateTime,
		}
		if msg := util.ValidateTransaction(tx); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		created, err := db.CreateTransaction(r.Context(), pool, tx)
		if err != nil {
			log.Printf("ERROR: Failed to create transaction for user %d: %v", userID, err)
			http.Error(w, "failed to create transaction", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Created transaction id %d for user %d", created.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

// parseWindow reads ?from=YYYY-MM-DD&to=YYYY-MM-DD (to is exclusive),
// defaulting to the current month.
func parseWindow(r *http.Request, now time.Time, loc *time.Location) (monitor.Window, error) {
	w := monitor.MonthWindow(now, loc)
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return w, err
		}
		w.Start = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return w, err
		}
		w.End = t
	}
	return w, nil
}

func GetTransactions(pool *pgxpool.Pool, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		window, err := parseWindow(r, time.Now(), loc)
		if err != nil || !window.Start.Before(window.End) {
			http.Error(w, "invalid date range", http.StatusBadRequest)
			return
		}
		txs, err := db.GetTransactionsForUser(r.Context(), pool, userID, window)
		if err != nil {
			log.Printf("ERROR: Failed to get transactions for user %d: %v", userID, err)
			http.Error(w, "failed to get transactions", http.StatusInternalServerError)
			return
		}
		if txs == nil {
			txs = []models.Transaction{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(txs)
	}
}

// GetMonthlyTotals returns ?months= (default 12) calendar-month totals of
// ?type= transactions (default income), oldest first.
func GetMonthlyTotals(agg *monitor.Aggregator, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())

		typ := models.TransactionIncome
		if t := r.URL.Query().Get("type"); t != "" {
			typ = models.TransactionType(t)
		}
		if !typ.Valid() {
			http.Error(w, "invalid type", http.StatusBadRequest)
			return
		}
		months := 12
		if m := r.URL.Query().Get("months"); m != "" {
			n, err := strconv.Atoi(m)
			if err != nil || n < 1 || n > 36 {
				http.Error(w, "months must be between 1 and 36", http.StatusBadRequest)
				return
			}
			months = n
		}

		totals, err := agg.Monthly(r.Context(), userID, typ, months, now(), loc)
		if err != nil {
			log.Printf("ERROR: Failed to aggregate monthly %s for user %d: %v", typ, userID, err)
			http.Error(w, "failed to aggregate transactions", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(totals)
	}
}

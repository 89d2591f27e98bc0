package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	db "budgee-monitor/src/db/sql"
	"budgee-monitor/src/middleware"
	"budgee-monitor/src/models"
	"budgee-monitor/src/util"
)

type goalRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    string          `json:"target_date"`
}

func CreateGoal(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req goalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create goal request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		targetDate, err := time.Parse("2006-01-02", req.TargetDate)
		if err != nil {
			http.Error(w, "target_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		goal := &models.SavingsGoal{
			UserID:        userID,
			Name:          req.Name,
			TargetAmount:  req.TargetAmount,
			CurrentAmount: req.CurrentAmount,
			TargetDate:    targetDate,
		}
		if msg := util.ValidateGoal(goal, time.Now()); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		created, err := db.CreateGoal(r.Context(), pool, goal)
		if err != nil {
			log.Printf("ERROR: Failed to create goal for user %d: %v", userID, err)
			http.Error(w, "failed to create goal", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Created goal id %d for user %d", created.ID, userID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func GetGoals(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		goals, err := db.GetGoalsForUser(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get goals for user %d: %v", userID, err)
			http.Error(w, "failed to get goals", http.StatusInternalServerError)
			return
		}
		if goals == nil {
			goals = []models.SavingsGoal{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(goals)
	}
}

// AddContribution records a savings transaction against a goal and returns
// the updated goal.
func AddContribution(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		goalIDStr := chi.URLParam(r, "goal_id")
		goalID, err := strconv.ParseInt(goalIDStr, 10, 64)
		if err != nil {
			log.Printf("ERROR: Invalid goal id param: %s", goalIDStr)
			http.Error(w, "invalid goal id", http.StatusBadRequest)
			return
		}
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if !util.ValidateAmount(req.Amount) {
			http.Error(w, "amount must be positive with at most two decimals", http.StatusBadRequest)
			return
		}
		goal, err := db.RecordContribution(r.Context(), pool, userID, goalID, req.Amount, time.Now())
		if err != nil {
			log.Printf("ERROR: Failed to record contribution to goal %d for user %d: %v", goalID, userID, err)
			http.Error(w, "failed to record contribution", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Recorded contribution of %s to goal %d for user %d", req.Amount, goalID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(goal)
	}
}

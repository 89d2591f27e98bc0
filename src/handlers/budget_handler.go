package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	db "budgee-monitor/src/db/sql"
	"budgee-monitor/src/middleware"
	"budgee-monitor/src/models"
	"budgee-monitor/src/util"
)

type budgetRequest struct {
	Category string              `json:"category"`
	Limit    decimal.Decimal     `json:"limit"`
	Period   models.BudgetPeriod `json:"period"`
}

func CreateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req budgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode create budget request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		budget := &models.Budget{
			UserID:   userID,
			Category: req.Category,
			Limit:    req.Limit,
			Period:   req.Period,
		}
		if msg := util.ValidateBudget(budget); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		created, err := db.CreateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to create budget for user %d: %v", userID, err)
			http.Error(w, "failed to create budget", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Created budget id %d for user %d, category %s", created.ID, userID, created.Category)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)
	}
}

func budgetIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	budgetIDStr := chi.URLParam(r, "budget_id")
	budgetID, err := strconv.ParseInt(budgetIDStr, 10, 64)
	if err != nil {
		log.Printf("ERROR: Invalid budget id param: %s", budgetIDStr)
		http.Error(w, "invalid budget id", http.StatusBadRequest)
		return 0, false
	}
	return budgetID, true
}

func GetBudgetByID(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		budgetID, ok := budgetIDParam(w, r)
		if !ok {
			return
		}
		budget, err := db.GetBudgetByID(r.Context(), pool, userID, budgetID)
		if err != nil {
			log.Printf("ERROR: Budget id %d not found for user %d: %v", budgetID, userID, err)
			http.Error(w, "budget not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budget)
	}
}

func GetAllBudgetsForUser(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		budgets, err := db.GetAllBudgetsForUser(r.Context(), pool, userID)
		if err != nil {
			log.Printf("ERROR: Failed to get budgets for user %d: %v", userID, err)
			http.Error(w, "failed to get budgets", http.StatusInternalServerError)
			return
		}
		if budgets == nil {
			budgets = []models.Budget{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budgets)
	}
}

func UpdateBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		budgetID, ok := budgetIDParam(w, r)
		if !ok {
			return
		}
		var req budgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode update budget request body for user %d: %v", userID, err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		budget := &models.Budget{
			ID:       budgetID,
			UserID:   userID,
			Category: req.Category,
			Limit:    req.Limit,
			Period:   req.Period,
		}
		if msg := util.ValidateBudget(budget); msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}
		updated, err := db.UpdateBudget(r.Context(), pool, budget)
		if err != nil {
			log.Printf("ERROR: Failed to update budget id %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "failed to update budget", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Updated budget id %d for user %d", budgetID, userID)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)
	}
}

func DeleteBudget(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserID(r.Context())
		budgetID, ok := budgetIDParam(w, r)
		if !ok {
			return
		}
		err := db.DeleteBudget(r.Context(), pool, userID, budgetID)
		if err != nil {
			log.Printf("ERROR: Failed to delete budget id %d for user %d: %v", budgetID, userID, err)
			http.Error(w, "failed to delete budget", http.StatusInternalServerError)
			return
		}
		log.Printf("INFO: Deleted budget id %d for user %d", budgetID, userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

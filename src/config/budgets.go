package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"budgee-monitor/src/models"
	"budgee-monitor/src/monitor"
)

// budgetFileDoc is the on-disk shape of a budgets file:
//
//	users:
//	  - user_id: 1
//	    budgets:
//	      - category: Dining
//	        limit: "200.00"
//	        period: monthly
type budgetFileDoc struct {
	Users []struct {
		UserID  int64 `yaml:"user_id"`
		Budgets []struct {
			Category string `yaml:"category"`
			Limit    string `yaml:"limit"`
			Period   string `yaml:"period"`
		} `yaml:"budgets"`
	} `yaml:"users"`
}

// BudgetFile serves budgets from a static YAML file. It implements
// monitor.BudgetSource and can reload itself when the file changes.
type BudgetFile struct {
	path string

	mu      sync.RWMutex
	budgets map[int64][]models.Budget
}

func LoadBudgetFile(path string) (*BudgetFile, error) {
	f := &BudgetFile{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func ParseBudgets(data []byte) (map[int64][]models.Budget, error) {
	var doc budgetFileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse budgets: %w", err)
	}

	out := make(map[int64][]models.Budget)
	var id int64
	for _, u := range doc.Users {
		if u.UserID <= 0 {
			return nil, fmt.Errorf("parse budgets: user_id must be positive")
		}
		for _, b := range u.Budgets {
			limit, err := decimal.NewFromString(b.Limit)
			if err != nil {
				return nil, fmt.Errorf("parse budgets: user %d %s: limit %q: %w", u.UserID, b.Category, b.Limit, err)
			}
			id++
			budget := models.Budget{
				ID:       id,
				UserID:   u.UserID,
				Category: b.Category,
				Limit:    limit,
				Period:   models.BudgetPeriod(b.Period),
			}
			if err := monitor.ValidateBudget(budget); err != nil {
				return nil, fmt.Errorf("parse budgets: user %d: %w", u.UserID, err)
			}
			out[u.UserID] = append(out[u.UserID], budget)
		}
	}
	return out, nil
}

// Reload rereads the file. On error the previous budgets stay in effect.
func (f *BudgetFile) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read budgets file: %w", err)
	}
	budgets, err := ParseBudgets(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.budgets = budgets
	f.mu.Unlock()
	return nil
}

func (f *BudgetFile) ListBudgets(_ context.Context, userID int64) ([]models.Budget, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.Budget(nil), f.budgets[userID]...), nil
}

// UserIDs lists every user with at least one budget in the file.
func (f *BudgetFile) UserIDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]int64, 0, len(f.budgets))
	for id := range f.budgets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Watch reloads the file whenever it changes until ctx ends. The directory is
// watched rather than the file so editors that replace the file by rename are
// picked up.
func (f *BudgetFile) Watch(ctx context.Context, logger *slog.Logger) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(f.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	logger = logger.With("component", "budgets-file", "path", f.path)
	logger.Info("Watching budgets file")

	go func() {
		defer fsw.Close()
		target := filepath.Clean(f.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := f.Reload(); err != nil {
					logger.Warn("Budgets reload failed, keeping previous budgets", "error", err)
					continue
				}
				logger.Info("Budgets reloaded", "users", len(f.UserIDs()))
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Error("Watcher error", "error", err)
			}
		}
	}()
	return nil
}

package config_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgee-monitor/src/config"
	"budgee-monitor/src/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "")
	t.Setenv("USER_SCAN_TIMEOUT", "")
	t.Setenv("NOTIFY_TIMEOUT", "")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("SCAN_SCHEDULE", "0 8 * * *")
	t.Setenv("LOG_LEVEL", "info")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ScanWorkers)
	assert.Equal(t, 30*time.Second, cfg.UserScanTimeout)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ParsesValues(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "8")
	t.Setenv("BUDGET_COOLDOWN", "24h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TIMEZONE", "America/New_York")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ScanWorkers)
	assert.Equal(t, 24*time.Hour, cfg.BudgetCooldown)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_ReportsMalformed(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "many")
	t.Setenv("USER_SCAN_TIMEOUT", "soon")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_WORKERS")
	assert.Contains(t, err.Error(), "USER_SCAN_TIMEOUT")
}

func TestValidate(t *testing.T) {
	valid := config.Config{
		LogLevel: "debug", ScanSchedule: "@every 1h", ScanWorkers: 1, UserScanTimeout: time.Second,
		NearingDeadlineDays: 30, Timezone: "UTC", NotifyWorkers: 1, NotifyBuffer: 1, NotifyTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad schedule", func(c *config.Config) { c.ScanSchedule = "nightly" }, "SCAN_SCHEDULE"},
		{"bad timezone", func(c *config.Config) { c.Timezone = "Mars/Olympus" }, "TIMEZONE"},
		{"no workers", func(c *config.Config) { c.ScanWorkers = 0 }, "SCAN_WORKERS"},
		{"webhook without secret", func(c *config.Config) { c.NotifyWebhookURL = "https://hooks.example" }, "NOTIFY_WEBHOOK_SECRET"},
		{"bad level", func(c *config.Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"negative cooldown", func(c *config.Config) { c.BudgetCooldown = -time.Hour }, "BUDGET_COOLDOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const budgetsYAML = `
users:
  - user_id: 1
    budgets:
      - category: Dining
        limit: "200.00"
        period: monthly
      - category: Fuel
        limit: "60"
        period: weekly
  - user_id: 2
    budgets:
      - category: Dining
        limit: "90.50"
        period: monthly
`

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func TestLoadBudgetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.yaml")
	writeFile(t, path, budgetsYAML)

	f, err := config.LoadBudgetFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, f.UserIDs())

	budgets, err := f.ListBudgets(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, "Dining", budgets[0].Category)
	assert.Equal(t, "200", budgets[0].Limit.String())
	assert.Equal(t, models.BudgetWeekly, budgets[1].Period)

	none, err := f.ListBudgets(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseBudgets_Rejects(t *testing.T) {
	tests := map[string]string{
		"bad limit":  "users:\n  - user_id: 1\n    budgets:\n      - {category: Dining, limit: lots, period: monthly}\n",
		"bad period": "users:\n  - user_id: 1\n    budgets:\n      - {category: Dining, limit: \"5\", period: yearly}\n",
		"zero limit": "users:\n  - user_id: 1\n    budgets:\n      - {category: Dining, limit: \"0\", period: monthly}\n",
		"no user":    "users:\n  - budgets: []\n",
		"not yaml":   "users: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseBudgets([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestBudgetFile_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.yaml")
	writeFile(t, path, budgetsYAML)

	f, err := config.LoadBudgetFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Watch(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))))

	// A broken write keeps the old budgets.
	writeFile(t, path, "users: [")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []int64{1, 2}, f.UserIDs())

	writeFile(t, path, "users:\n  - user_id: 3\n    budgets:\n      - {category: Rent, limit: \"1200\", period: monthly}\n")
	assert.Eventually(t, func() bool {
		ids := f.UserIDs()
		return len(ids) == 1 && ids[0] == 3
	}, 3*time.Second, 20*time.Millisecond)
}

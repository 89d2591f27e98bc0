package db

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"budgee-monitor/src/monitor"
)

// LatchCache remembers latches this process has already seen held so repeat
// passes can skip the conditional write. It can only ever answer "held": a miss
// always falls through to the database, which stays the source of truth.
type LatchCache struct {
	cache *ristretto.Cache
}

func NewLatchCache() (*LatchCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize latch cache: %w", err)
	}
	return &LatchCache{cache: cache}, nil
}

func goalCacheKey(goalID int64, latch monitor.GoalLatch) string {
	return fmt.Sprintf("goal:%d:%s", goalID, latch)
}

// Goal latches are one-way, so once held they are cached without a TTL.
func (c *LatchCache) GoalHeld(goalID int64, latch monitor.GoalLatch) bool {
	if c == nil {
		return false
	}
	_, ok := c.cache.Get(goalCacheKey(goalID, latch))
	return ok
}

func (c *LatchCache) MarkGoal(goalID int64, latch monitor.GoalLatch) {
	if c == nil {
		return
	}
	c.cache.Set(goalCacheKey(goalID, latch), struct{}{}, 1)
	c.cache.Wait()
}

func (c *LatchCache) BudgetHeld(key monitor.BudgetLatchKey, now time.Time) bool {
	if c == nil {
		return false
	}
	v, ok := c.cache.Get(key.String())
	if !ok {
		return false
	}
	expiresAt, ok := v.(time.Time)
	return ok && expiresAt.After(now)
}

// MarkBudget caches a won budget latch until it expires.
func (c *LatchCache) MarkBudget(key monitor.BudgetLatchKey, now, expiresAt time.Time) {
	if c == nil {
		return
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return
	}
	c.cache.SetWithTTL(key.String(), expiresAt, 1, ttl)
	c.cache.Wait()
}

// Clear drops every cached latch. Used when latches are reset out of band.
func (c *LatchCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Clear()
}

func (c *LatchCache) Close() {
	if c == nil {
		return
	}
	c.cache.Close()
}

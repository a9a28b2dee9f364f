package repository_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"classqa/internal/classroom/repository"
	"classqa/internal/common/cache"
	"classqa/internal/common/db"

	"github.com/alicebob/miniredis/v2"
)

var dbSeq atomic.Int64

func newTestDatabase(t *testing.T) db.Database {
	t.Helper()
	dsn := fmt.Sprintf("file:classqa_repo_%d?mode=memory&cache=shared", dbSeq.Add(1))
	database, err := db.Open(&db.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := repository.EnsureSchema(t.Context(), database); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}
	return database
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client, err := cache.NewRedisCache(server.Addr())
	if err != nil {
		t.Fatalf("create redis cache failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

// stepClock returns a fixed instant until advanced.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wardrobe-labs/concierge/pkg/config"
	"github.com/wardrobe-labs/concierge/pkg/session"
)

func testRetention() *config.RetentionConfig {
	return &config.RetentionConfig{
		SweepIntervalMinutes:   60,
		PersistedRetentionDays: 30,
	}
}

func TestServiceSweepsIdleSessions(t *testing.T) {
	store := session.NewStore(nil)
	stale := store.GetOrCreate("user-1", "conv-old")
	stale.LastActive = time.Now().Add(-48 * time.Hour)
	store.GetOrCreate("user-1", "conv-new")

	svc := NewService(testRetention(), 24*time.Hour, store, nil)
	svc.runAll(context.Background())

	assert.Equal(t, 1, store.Count())
	_, ok := store.Get("user-1", "conv-old")
	assert.False(t, ok)
	_, ok = store.Get("user-1", "conv-new")
	assert.True(t, ok)
}

func TestServiceKeepsActiveSessions(t *testing.T) {
	store := session.NewStore(nil)
	store.GetOrCreate("user-1", "conv-1")

	svc := NewService(testRetention(), 24*time.Hour, store, nil)
	svc.runAll(context.Background())

	assert.Equal(t, 1, store.Count())
}

func TestServiceStartStop(t *testing.T) {
	store := session.NewStore(nil)
	stale := store.GetOrCreate("user-1", "conv-old")
	stale.LastActive = time.Now().Add(-48 * time.Hour)

	svc := NewService(testRetention(), 24*time.Hour, store, nil)
	svc.Start(context.Background())
	// Start is idempotent.
	svc.Start(context.Background())

	// The first sweep runs on startup, before the ticker.
	assert.Eventually(t, func() bool {
		return store.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	svc.Stop()
	// Stop is idempotent too.
	svc.Stop()
}

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/repositories"
)

// setupDB starts only the postgres container, for tests that drive
// repositories directly without the HTTP stack.
func setupDB(t *testing.T) *TestDB {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Teardown(context.Background()) })
	return db
}

func TestRateLimitWindow_DenyThenReset(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewRateLimitRepository(db.Pool)
	ctx := context.Background()

	const threshold = 3
	window := 2 * time.Second

	// Requests 1..threshold pass through with an increasing count.
	for i := 1; i <= threshold; i++ {
		rl, err := repo.Hit(ctx, "203.0.113.50", "login", window, threshold)
		require.NoError(t, err)
		assert.Equal(t, i, rl.Count, "request %d should count without blocking", i)
		assert.Nil(t, rl.BlockedUntil, "request %d should not be blocked", i)
	}

	// Request threshold+1 crosses the line and is itself denied.
	rl, err := repo.Hit(ctx, "203.0.113.50", "login", window, threshold)
	require.NoError(t, err)
	require.NotNil(t, rl.BlockedUntil, "the request that crosses the threshold is denied")
	assert.True(t, rl.BlockedUntil.After(time.Now()))
	blockedCount := rl.Count

	// Hits during the block leave the row frozen.
	rl, err = repo.Hit(ctx, "203.0.113.50", "login", window, threshold)
	require.NoError(t, err)
	require.NotNil(t, rl.BlockedUntil)
	assert.Equal(t, blockedCount, rl.Count, "count must not advance while blocked")

	// Other identifiers keep their own budget while this one is blocked.
	other, err := repo.Hit(ctx, "203.0.113.51", "login", window, threshold)
	require.NoError(t, err)
	assert.Nil(t, other.BlockedUntil)
	assert.Equal(t, 1, other.Count)

	// Once the block elapses, the next hit opens a fresh window.
	time.Sleep(window + 500*time.Millisecond)
	rl, err = repo.Hit(ctx, "203.0.113.50", "login", window, threshold)
	require.NoError(t, err)
	assert.Nil(t, rl.BlockedUntil, "elapsed block should clear")
	assert.Equal(t, 1, rl.Count, "fresh window starts counting from one")
}

func TestRateLimitWindow_ExpiresWithoutBlock(t *testing.T) {
	db := setupDB(t)
	repo := repositories.NewRateLimitRepository(db.Pool)
	ctx := context.Background()

	window := time.Second

	rl, err := repo.Hit(ctx, "203.0.113.60", "password_reset", window, 5)
	require.NoError(t, err)
	require.Equal(t, 1, rl.Count)
	firstWindow := rl.WindowStart

	rl, err = repo.Hit(ctx, "203.0.113.60", "password_reset", window, 5)
	require.NoError(t, err)
	require.Equal(t, 2, rl.Count)

	// An idle pair under the threshold rolls into a new window on the next
	// hit instead of accumulating forever.
	time.Sleep(window + 500*time.Millisecond)
	rl, err = repo.Hit(ctx, "203.0.113.60", "password_reset", window, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, rl.Count)
	assert.True(t, rl.WindowStart.After(firstWindow))
}

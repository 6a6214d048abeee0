package idempotency

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_backend/internal/feature/attendance/usecase"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

func TestNewRedisCommitGuard(t *testing.T) {
	client, _ := setupTestRedis(t)
	g := NewRedisCommitGuard(client, "")

	assert.Equal(t, "attendance:commit", g.prefix)
	assert.Equal(t, "attendance:commit:draft-1", g.key("draft-1"))
}

// guards は両方の実装に同じシナリオを適用するためのファクトリです。
func guards(t *testing.T) map[string]func() usecase.CommitGuard {
	return map[string]func() usecase.CommitGuard{
		"redis": func() usecase.CommitGuard {
			client, _ := setupTestRedis(t)
			return NewRedisCommitGuard(client, "test")
		},
		"memory": func() usecase.CommitGuard {
			return NewMemoryCommitGuard()
		},
	}
}

func TestCommitGuard_Lifecycle(t *testing.T) {
	for name, newGuard := range guards(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			g := newGuard()

			require.NoError(t, g.Acquire(ctx, "draft-1"))
			assert.ErrorIs(t, g.Acquire(ctx, "draft-1"), usecase.ErrCommitInProgress)

			// 別の下書きは独立している
			require.NoError(t, g.Acquire(ctx, "draft-2"))

			require.NoError(t, g.Complete(ctx, "draft-1"))
			assert.ErrorIs(t, g.Acquire(ctx, "draft-1"), usecase.ErrAlreadyCommitted)

			require.NoError(t, g.Release(ctx, "draft-2"))
			assert.NoError(t, g.Acquire(ctx, "draft-2"))
		})
	}
}

func TestRedisCommitGuard_LockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	g := NewRedisCommitGuard(client, "test")
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "draft-1"))
	assert.Equal(t, g.lockTTL, mr.TTL("test:draft-1"))

	mr.FastForward(g.lockTTL + time.Second)
	assert.NoError(t, g.Acquire(ctx, "draft-1"), "expired lock must be re-acquirable")

	require.NoError(t, g.Complete(ctx, "draft-1"))
	assert.Equal(t, g.doneTTL, mr.TTL("test:draft-1"))
}

func TestRedisCommitGuard_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	g := NewRedisCommitGuard(client, "test")
	mr.Close()

	err = g.Acquire(context.Background(), "draft-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, usecase.ErrCommitInProgress)
	assert.NotErrorIs(t, err, usecase.ErrAlreadyCommitted)
}

func TestMemoryCommitGuard_Expiry(t *testing.T) {
	g := NewMemoryCommitGuard()
	now := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "stale-lock"))
	require.NoError(t, g.Acquire(ctx, "done-1"))
	require.NoError(t, g.Complete(ctx, "done-1"))

	now = now.Add(g.lockTTL + time.Second)
	assert.NoError(t, g.Acquire(ctx, "stale-lock"), "expired lock must be re-acquirable")
	assert.ErrorIs(t, g.Acquire(ctx, "done-1"), usecase.ErrAlreadyCommitted)

	for i := 0; i < 100; i++ {
		require.NoError(t, g.Acquire(ctx, fmt.Sprintf("draft-%d", i)))
		require.NoError(t, g.Complete(ctx, fmt.Sprintf("draft-%d", i)))
	}
	assert.Equal(t, 102, len(g.states))

	// 完了済みのキーも doneTTL を過ぎれば削除され、増え続けない
	now = now.Add(g.doneTTL + time.Second)
	require.NoError(t, g.Acquire(ctx, "next"))
	assert.Equal(t, 1, len(g.states))
}

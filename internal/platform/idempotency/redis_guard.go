// Package idempotency は出席記録の重複コミットを防ぐガードを提供します。
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"academy_backend/internal/feature/attendance/usecase"
)

const (
	statePending = "pending"
	stateDone    = "done"

	defaultLockTTL = 2 * time.Minute
	defaultDoneTTL = 24 * time.Hour
)

// RedisCommitGuard implements usecase.CommitGuard using Redis SETNX.
// The lock expires after lockTTL so a crashed commit does not block retries forever.
type RedisCommitGuard struct {
	client  *redis.Client
	prefix  string
	lockTTL time.Duration
	doneTTL time.Duration
}

// RedisCommitGuardがCommitGuardを実装していることをコンパイル時に検証します。
var _ usecase.CommitGuard = (*RedisCommitGuard)(nil)

// NewRedisCommitGuard creates a new RedisCommitGuard instance.
func NewRedisCommitGuard(client *redis.Client, prefix string) *RedisCommitGuard {
	if prefix == "" {
		prefix = "attendance:commit"
	}
	return &RedisCommitGuard{
		client:  client,
		prefix:  prefix,
		lockTTL: defaultLockTTL,
		doneTTL: defaultDoneTTL,
	}
}

// key returns the Redis key for a draft.
func (g *RedisCommitGuard) key(draftID string) string {
	return fmt.Sprintf("%s:%s", g.prefix, draftID)
}

// Acquire reserves the draft for a commit.
func (g *RedisCommitGuard) Acquire(ctx context.Context, draftID string) error {
	ok, err := g.client.SetNX(ctx, g.key(draftID), statePending, g.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire commit guard: %w", err)
	}
	if ok {
		return nil
	}

	state, err := g.client.Get(ctx, g.key(draftID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// 確認の間に期限切れになった。もう一度だけ確保を試みる
		return g.retryAcquire(ctx, draftID)
	case err != nil:
		return fmt.Errorf("read commit guard: %w", err)
	case state == stateDone:
		return usecase.ErrAlreadyCommitted
	default:
		return usecase.ErrCommitInProgress
	}
}

func (g *RedisCommitGuard) retryAcquire(ctx context.Context, draftID string) error {
	ok, err := g.client.SetNX(ctx, g.key(draftID), statePending, g.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire commit guard: %w", err)
	}
	if !ok {
		return usecase.ErrCommitInProgress
	}
	return nil
}

// Complete marks the draft as committed.
func (g *RedisCommitGuard) Complete(ctx context.Context, draftID string) error {
	if err := g.client.Set(ctx, g.key(draftID), stateDone, g.doneTTL).Err(); err != nil {
		return fmt.Errorf("complete commit guard: %w", err)
	}
	return nil
}

// Release removes the reservation so the operator can retry.
func (g *RedisCommitGuard) Release(ctx context.Context, draftID string) error {
	if err := g.client.Del(ctx, g.key(draftID)).Err(); err != nil {
		return fmt.Errorf("release commit guard: %w", err)
	}
	return nil
}

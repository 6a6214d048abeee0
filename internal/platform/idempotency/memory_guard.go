package idempotency

import (
	"context"
	"sync"
	"time"

	"academy_backend/internal/feature/attendance/usecase"
)

// MemoryCommitGuard はRedisがない環境（単一プロセス）向けのCommitGuard実装です。
// 有効期限は RedisCommitGuard と同じで、期限切れのキーは次の Acquire で削除します。
type MemoryCommitGuard struct {
	mu      sync.Mutex
	states  map[string]guardEntry
	lockTTL time.Duration
	doneTTL time.Duration
	now     func() time.Time
}

type guardEntry struct {
	state   string
	expires time.Time
}

// MemoryCommitGuardがCommitGuardを実装していることをコンパイル時に検証します。
var _ usecase.CommitGuard = (*MemoryCommitGuard)(nil)

// NewMemoryCommitGuard はMemoryCommitGuardの新しいインスタンスを生成します。
func NewMemoryCommitGuard() *MemoryCommitGuard {
	return &MemoryCommitGuard{
		states:  make(map[string]guardEntry),
		lockTTL: defaultLockTTL,
		doneTTL: defaultDoneTTL,
		now:     time.Now,
	}
}

func (g *MemoryCommitGuard) Acquire(ctx context.Context, draftID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)
	switch g.states[draftID].state {
	case stateDone:
		return usecase.ErrAlreadyCommitted
	case statePending:
		return usecase.ErrCommitInProgress
	}
	g.states[draftID] = guardEntry{state: statePending, expires: now.Add(g.lockTTL)}
	return nil
}

func (g *MemoryCommitGuard) Complete(ctx context.Context, draftID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[draftID] = guardEntry{state: stateDone, expires: g.now().Add(g.doneTTL)}
	return nil
}

func (g *MemoryCommitGuard) Release(ctx context.Context, draftID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, draftID)
	return nil
}

// prune はロックを保持した状態で呼び出します。
func (g *MemoryCommitGuard) prune(now time.Time) {
	for id, e := range g.states {
		if !now.Before(e.expires) {
			delete(g.states, id)
		}
	}
}

// Package ratelimiter は外部API呼び出しの頻度を制限します。
package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type Limiter interface {
	WaitIfNeeded(ctx context.Context) error
}

// RateLimiterは、固定ウィンドウ方式でAPI呼び出しなどの操作の頻度を制限します。
// 複数のゴルーチンから安全に呼び出せます。
type RateLimiter struct {
	mu        sync.Mutex
	limit     int           // interval あたりの上限。0以下なら無制限
	interval  time.Duration // どの単位でリセットするか
	count     int
	lastReset time.Time
	now       func() time.Time
}

// RateLimiterがLimiterを実装していることをコンパイル時に検証します。
var _ Limiter = (*RateLimiter)(nil)

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		interval:  interval,
		lastReset: time.Now(),
		now:       time.Now,
	}
}

// WaitIfNeededはレートリミットの上限に達しているかを確認し、必要であれば待機します。
// 待機中に ctx がキャンセルされた場合は ctx.Err() を返します。
func (rl *RateLimiter) WaitIfNeeded(ctx context.Context) error {
	if rl.limit <= 0 {
		return nil
	}

	rl.mu.Lock()
	now := rl.now()
	// interval を過ぎたらカウントリセット
	if now.Sub(rl.lastReset) >= rl.interval {
		rl.count = 0
		rl.lastReset = now
	}
	rl.count++
	if rl.count > rl.limit {
		// 次のウィンドウの枠を予約する
		rl.lastReset = rl.lastReset.Add(rl.interval)
		rl.count = 1
	}
	wait := rl.lastReset.Sub(now)
	rl.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	slog.Info("rate limit reached, waiting", "limit", rl.limit, "wait", wait)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

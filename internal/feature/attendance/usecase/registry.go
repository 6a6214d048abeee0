package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionIdleTimeout は操作のないセッションを閉じるまでの既定の時間です。
const DefaultSessionIdleTimeout = 15 * time.Minute

// SessionRegistry はテナントごとの Workflow セッションを保持します。
type SessionRegistry struct {
	mu          sync.Mutex
	sessions    map[string]*Workflow
	deps        WorkflowDeps
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionRegistry はSessionRegistryの新しいインスタンスを生成します。
// idleTimeout が 0 以下の場合は DefaultSessionIdleTimeout を使用します。
func NewSessionRegistry(deps WorkflowDeps, idleTimeout time.Duration) *SessionRegistry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultSessionIdleTimeout
	}
	return &SessionRegistry{
		sessions:    make(map[string]*Workflow),
		deps:        deps,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create は新しいセッションを作成します。
func (r *SessionRegistry) Create(tenantID string, classID *string) *Workflow {
	w := NewWorkflow(uuid.NewString(), tenantID, r.deps)
	w.now = r.now
	w.lastActive = r.now()
	if classID != nil {
		_ = w.SetClass(classID)
	}

	r.mu.Lock()
	r.sessions[w.ID()] = w
	r.mu.Unlock()
	return w
}

// Get はテナントのセッションを返します。他テナントのセッションは見つからない扱いです。
func (r *SessionRegistry) Get(tenantID, id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.sessions[id]
	if !ok || w.TenantID() != tenantID {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// Remove はセッションを閉じて削除します。
func (r *SessionRegistry) Remove(tenantID, id string) error {
	r.mu.Lock()
	w, ok := r.sessions[id]
	if !ok || w.TenantID() != tenantID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	w.Close()
	return nil
}

// Len は保持しているセッション数を返します。
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep は idleTimeout を超えて操作のないセッションを閉じ、閉じた数を返します。
// 各セッションの状態はレジストリのロックを外してから確認します。
func (r *SessionRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	all := make([]*Workflow, 0, len(r.sessions))
	for _, w := range r.sessions {
		all = append(all, w)
	}
	r.mu.Unlock()

	var idle []*Workflow
	for _, w := range all {
		if w.IdleSince().Before(cutoff) {
			idle = append(idle, w)
		}
	}

	r.mu.Lock()
	closed := idle[:0]
	for _, w := range idle {
		// 確認中に削除されたセッションは対象外
		if r.sessions[w.ID()] == w {
			delete(r.sessions, w.ID())
			closed = append(closed, w)
		}
	}
	r.mu.Unlock()

	for _, w := range closed {
		w.Close()
		slog.Info("アイドルセッションを終了", "session_id", w.ID(), "tenant_id", w.TenantID())
	}
	return len(closed)
}

// RunSweeper は ctx が終了するまで interval ごとに Sweep を実行します。
func (r *SessionRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll はすべてのセッションを閉じます。サーバー終了時に呼び出します。
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*Workflow, 0, len(r.sessions))
	for id, w := range r.sessions {
		all = append(all, w)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}

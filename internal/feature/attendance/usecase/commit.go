package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// AttendanceRepository は出席記録の保存先です。更新・削除の経路は持ちません。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type AttendanceRepository interface {
	// Create は親レコードと生徒リンクを1回のリクエスト（トランザクション）で作成し、
	// rec.ID と rec.CreatedAt を設定します。
	// 同じ DraftID の記録が既にある場合は ErrAlreadyCommitted を返します。
	Create(ctx context.Context, rec *entity.AttendanceRecord) error
}

// EvidenceStore は監査用の撮影画像を保存します。
type EvidenceStore interface {
	// Save は画像を保存し、参照とダイジェストを返します。
	Save(ctx context.Context, tenantID string, photo *entity.EvidencePhoto) (ref string, digest string, err error)
	// Delete は保存済みの画像を削除します。
	Delete(ctx context.Context, ref string) error
}

// CommitGuard は同じ下書きの重複コミットを防ぎます。
type CommitGuard interface {
	// Acquire はキーを確保します。処理中なら ErrCommitInProgress、完了済みなら ErrAlreadyCommitted を返します。
	Acquire(ctx context.Context, key string) error
	// Complete はキーを完了済みにします。
	Complete(ctx context.Context, key string) error
	// Release は失敗時にキーを解放し、再試行を可能にします。
	Release(ctx context.Context, key string) error
}

// AttendanceCommitter は下書きを1件の出席記録として確定します。
type AttendanceCommitter struct {
	repo     AttendanceRepository
	evidence EvidenceStore
	guard    CommitGuard
	now      func() time.Time
}

// NewAttendanceCommitter はAttendanceCommitterの新しいインスタンスを生成します。evidence は nil でも構いません。
func NewAttendanceCommitter(repo AttendanceRepository, evidence EvidenceStore, guard CommitGuard) *AttendanceCommitter {
	return &AttendanceCommitter{repo: repo, evidence: evidence, guard: guard, now: time.Now}
}

// Commit は下書きから出席記録を作成します。
// 確認1回につき記録は最大1件です。失敗時は部分的な記録を残さず *CommitError を返します。
func (c *AttendanceCommitter) Commit(ctx context.Context, draft *entity.AttendanceDraft, classID *string) (*entity.AttendanceRecord, error) {
	if draft == nil {
		return nil, ErrNothingToConfirm
	}

	if err := c.guard.Acquire(ctx, draft.ID); err != nil {
		if errors.Is(err, ErrCommitInProgress) || errors.Is(err, ErrAlreadyCommitted) {
			return nil, err
		}
		return nil, &CommitError{Err: err}
	}

	rec := &entity.AttendanceRecord{
		TenantID:          draft.TenantID,
		ClassID:           classID,
		DraftID:           draft.ID,
		Students:          draft.RecognizedStudents,
		VisitorCount:      draft.VisitorCount,
		ExperimentalCount: draft.ExperimentalCount,
	}
	if draft.Evidence != nil {
		rec.CapturedAt = draft.Evidence.TakenAt
		if rec.CapturedAt == nil {
			now := c.now()
			rec.CapturedAt = &now
		}
	}

	if draft.Evidence != nil && c.evidence != nil {
		ref, digest, err := c.evidence.Save(ctx, draft.TenantID, draft.Evidence)
		if err != nil {
			c.release(ctx, draft.ID)
			return nil, &CommitError{Err: err}
		}
		rec.EvidencePhotoRef = ref
		rec.EvidenceDigest = digest
	}

	if err := c.repo.Create(ctx, rec); err != nil {
		c.discardEvidence(ctx, rec.EvidencePhotoRef)
		if errors.Is(err, ErrAlreadyCommitted) {
			c.complete(ctx, draft.ID)
			return nil, err
		}
		c.release(ctx, draft.ID)
		return nil, &CommitError{Err: err}
	}

	c.complete(ctx, draft.ID)
	return rec, nil
}

func (c *AttendanceCommitter) release(ctx context.Context, key string) {
	if err := c.guard.Release(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("コミットガードの解放に失敗", "draft_id", key, "error", err)
	}
}

func (c *AttendanceCommitter) complete(ctx context.Context, key string) {
	if err := c.guard.Complete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("コミットガードの完了に失敗", "draft_id", key, "error", err)
	}
}

func (c *AttendanceCommitter) discardEvidence(ctx context.Context, ref string) {
	if ref == "" || c.evidence == nil {
		return
	}
	if err := c.evidence.Delete(context.WithoutCancel(ctx), ref); err != nil {
		slog.Warn("証拠画像の削除に失敗", "ref", ref, "error", err)
	}
}

package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// Recognizer は Workflow が使う認識処理です。RecognitionClient が実装します。
type Recognizer interface {
	Recognize(ctx context.Context, img *CapturedImage, tenantID string) (*RecognitionResult, error)
}

// Committer は Workflow が使うコミット処理です。AttendanceCommitter が実装します。
type Committer interface {
	Commit(ctx context.Context, draft *entity.AttendanceDraft, classID *string) (*entity.AttendanceRecord, error)
}

var (
	_ Recognizer = (*RecognitionClient)(nil)
	_ Committer  = (*AttendanceCommitter)(nil)
)

// WorkflowDeps は Workflow の依存関係です。
type WorkflowDeps struct {
	Cameras    CameraProvider
	Recognizer Recognizer
	Committer  Committer
}

// WorkflowState は Workflow のある時点のスナップショットです。
type WorkflowState struct {
	SessionID       string
	TenantID        string
	ClassID         *string
	Step            entity.Step
	CameraActive    bool
	HasImage        bool
	Shape           ResponseShape
	NoFacesDetected bool
	CanFinalize     bool
	Counts          entity.ReconciliationCounts
	Entries         []entity.FaceReconciliationEntry
	Record          *entity.AttendanceRecord
	Notice          error // 直前の操作で発生したエラー
}

// Workflow は1人のオペレーターの出席登録セッションです。
// select → capture → processing → results → confirm の順に進み、戻るのは Reset のみです。
// カメラはこのセッションが排他的に所有し、capture ステップを抜けると解放されます。
type Workflow struct {
	mu sync.Mutex

	id         string
	tenantID   string
	classID    *string
	step       entity.Step
	capture    *CaptureSource
	recognizer Recognizer
	committer  Committer

	image      *CapturedImage
	result     *RecognitionResult
	recon      *Reconciliation
	record     *entity.AttendanceRecord
	notice     error
	committing bool

	// generation は Reset ごとに増え、リセット前に開始した処理の結果を破棄するために使います。
	generation uint64
	cancel     context.CancelFunc

	lastActive time.Time
	now        func() time.Time
}

// NewWorkflow はWorkflowの新しいインスタンスを生成します。
func NewWorkflow(id, tenantID string, deps WorkflowDeps) *Workflow {
	return &Workflow{
		id:         id,
		tenantID:   tenantID,
		step:       entity.StepSelect,
		capture:    NewCaptureSource(id, deps.Cameras),
		recognizer: deps.Recognizer,
		committer:  deps.Committer,
		lastActive: time.Now(),
		now:        time.Now,
	}
}

// ID はセッションIDを返します。
func (w *Workflow) ID() string { return w.id }

// TenantID はセッションのテナントIDを返します。
func (w *Workflow) TenantID() string { return w.tenantID }

// SetClass はコミット時に紐付けるクラスを設定します。nil で解除します。
func (w *Workflow) SetClass(classID *string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.step == entity.StepConfirm {
		return ErrInvalidTransition
	}
	w.classID = classID
	return nil
}

// StartCamera はライブカメラを開始し、capture ステップに進みます。
// 失敗時は select のまま ErrCameraUnavailable を返します（アップロードは引き続き可能です）。
// カメラを開いている間はロックを保持しないため、Reset や Snapshot はすぐに戻ります。
func (w *Workflow) StartCamera(ctx context.Context) error {
	w.mu.Lock()
	w.touch()
	if w.step != entity.StepSelect && w.step != entity.StepCapture {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	w.abortOpen()
	w.capture.Clear()
	w.image = nil
	w.step = entity.StepSelect
	gen := w.generation
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	cam, err := w.capture.OpenCamera(ctx)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		// オープン中に Reset またはアップロードされた
		w.capture.release(cam)
		return context.Canceled
	}
	w.cancel = nil

	if err != nil {
		w.notice = err
		return err
	}
	w.capture.Attach(cam)
	w.step = entity.StepCapture
	w.notice = nil
	return nil
}

// UploadPhoto はアップロードされた画像を読み込んで撮影済みにし、capture ステップに進みます。
func (w *Workflow) UploadPhoto(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.step != entity.StepSelect && w.step != entity.StepCapture {
		return ErrInvalidTransition
	}
	w.abortOpen()
	if err := w.capture.LoadFile(data); err != nil {
		w.notice = err
		return err
	}
	img, err := w.capture.Capture(ctx)
	if err != nil {
		w.notice = err
		return err
	}
	w.image = img
	w.step = entity.StepCapture
	w.notice = nil
	return nil
}

// Capture は現在のフレームを撮影します。capture ステップでのみ有効です。
func (w *Workflow) Capture(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.step != entity.StepCapture {
		return ErrInvalidTransition
	}
	img, err := w.capture.Capture(ctx)
	if err != nil {
		w.notice = err
		return err
	}
	w.image = img
	w.notice = nil
	return nil
}

// Recognize は撮影画像を認識サービスに送り、results ステップに進みます。
// 処理中の間は2回目の認識を受け付けません。
// 認識エラーと ErrEmptyRoster の場合は画像を破棄して select に戻ります。
func (w *Workflow) Recognize(ctx context.Context) error {
	w.mu.Lock()
	w.touch()
	switch {
	case w.step == entity.StepProcessing:
		w.mu.Unlock()
		return ErrRecognitionInProgress
	case w.step != entity.StepCapture:
		w.mu.Unlock()
		return ErrInvalidTransition
	case w.image == nil:
		w.mu.Unlock()
		return ErrNoImage
	}

	w.capture.Stop()
	w.step = entity.StepProcessing
	w.notice = nil
	gen := w.generation
	img := w.image
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	result, err := w.recognizer.Recognize(ctx, img, w.tenantID)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		// 認識中に Reset された
		return context.Canceled
	}
	w.cancel = nil

	if err != nil {
		slog.Warn("顔認識に失敗したためリセット", "session_id", w.id, "tenant_id", w.tenantID, "error", err)
		w.clear()
		w.notice = err
		return err
	}

	w.result = result
	w.recon = NewReconciliation(result, img.Frame)
	w.step = entity.StepResults
	return nil
}

// Decide は検出顔の分類を設定します。results ステップでのみ有効です。
func (w *Workflow) Decide(faceID string, d entity.Decision) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()

	if w.step != entity.StepResults || w.recon == nil {
		return ErrInvalidTransition
	}
	if w.committing {
		return ErrCommitInProgress
	}
	return w.recon.Decide(faceID, d)
}

// Commit は分類結果を出席記録として確定し、confirm ステップに進みます。
// 失敗時は results のまま下書きを保持し、再試行できます。
// コミット中に Reset された場合は、保存された記録と context.Canceled を返します。
func (w *Workflow) Commit(ctx context.Context) (*entity.AttendanceRecord, error) {
	w.mu.Lock()
	w.touch()
	if w.step == entity.StepConfirm && w.record != nil {
		w.mu.Unlock()
		return nil, ErrAlreadyCommitted
	}
	if w.step != entity.StepResults || w.recon == nil {
		w.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if w.committing {
		w.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	draft, err := w.recon.Draft(w.tenantID, w.image.Evidence())
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.committing = true
	gen := w.generation
	classID := w.classID
	w.mu.Unlock()

	rec, err := w.committer.Commit(ctx, draft, classID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		// コミット中に Reset された。保存済みの記録はセッションに残さず、呼び出し側に返す。
		if err != nil {
			return nil, err
		}
		slog.Warn("リセット後にコミットが完了", "session_id", w.id, "tenant_id", w.tenantID, "attendance_id", rec.ID)
		return rec, context.Canceled
	}
	w.committing = false

	if err != nil {
		w.notice = err
		return nil, err
	}

	w.record = rec
	w.recon = nil
	w.result = nil
	w.image = nil
	w.notice = nil
	w.step = entity.StepConfirm
	return rec, nil
}

// Reset はカメラを停止し、処理中の認識をキャンセルして select に戻ります。
// 何度呼んでも結果は同じです。
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touch()
	w.clear()
	w.notice = nil
}

// Close はセッションを終了し、カメラを解放します。
func (w *Workflow) Close() {
	w.Reset()
}

// Snapshot は現在の状態のコピーを返します。
func (w *Workflow) Snapshot() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := WorkflowState{
		SessionID:    w.id,
		TenantID:     w.tenantID,
		ClassID:      w.classID,
		Step:         w.step,
		CameraActive: w.capture.Active(),
		HasImage:     w.image != nil,
		Record:       w.record,
		Notice:       w.notice,
	}
	if w.result != nil {
		s.Shape = w.result.Shape
		s.NoFacesDetected = w.result.NoFacesDetected()
	}
	if w.recon != nil {
		s.CanFinalize = w.recon.CanFinalize() && !w.committing
		s.Counts = w.recon.Counts()
		s.Entries = w.recon.Entries()
	}
	return s
}

// IdleSince は最後に操作された時刻を返します。
func (w *Workflow) IdleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// clear はロックを保持した状態で呼び出します。
func (w *Workflow) clear() {
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.capture.Clear()
	w.image = nil
	w.result = nil
	w.recon = nil
	w.record = nil
	w.committing = false
	w.step = entity.StepSelect
}

// abortOpen は進行中のカメラオープンを中断します。ロックを保持した状態で呼び出します。
// select/capture ステップでは w.cancel はオープン処理のものだけです。
func (w *Workflow) abortOpen() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.cancel = nil
	w.generation++
}

func (w *Workflow) touch() {
	w.lastActive = w.now()
}

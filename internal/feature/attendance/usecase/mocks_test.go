package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// ErrAPI はモックと期待値の間で共有されるセンチネルエラーです。
var ErrAPI = errors.New("api error")

// testImage は単色のテスト画像を JPEG で返します。
func testImage(t *testing.T, w, h int) []byte {
	t.Helper()

	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 80, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// mockCamera はCameraインターフェースのモック実装です。
type mockCamera struct {
	frame      image.Image
	err        error
	closeCalls int
}

func (m *mockCamera) ReadFrame(ctx context.Context) (image.Image, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.frame, nil
}

func (m *mockCamera) Close() error {
	m.closeCalls++
	return nil
}

// mockCameraProvider はCameraProviderインターフェースのモック実装です。
type mockCameraProvider struct {
	OpenFunc func(ctx context.Context, sessionID string) (usecase.Camera, error)
	opened   []*mockCamera
}

func (m *mockCameraProvider) Open(ctx context.Context, sessionID string) (usecase.Camera, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, sessionID)
	}
	cam := &mockCamera{frame: imaging.New(64, 48, color.White)}
	m.opened = append(m.opened, cam)
	return cam, nil
}

// mockRecognitionService はRecognitionServiceインターフェースのモック実装です。
type mockRecognitionService struct {
	RecognizeFunc  func(ctx context.Context, req entity.RecognitionRequest) (*entity.RecognitionResponse, error)
	RecognizeCalls int
}

func (m *mockRecognitionService) Recognize(ctx context.Context, req entity.RecognitionRequest) (*entity.RecognitionResponse, error) {
	m.RecognizeCalls++
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, req)
	}
	return nil, errors.New("RecognizeFunc is not implemented")
}

// mockRosterRepository はRosterRepositoryインターフェースのモック実装です。
type mockRosterRepository struct {
	CountFunc     func(ctx context.Context, tenantID string) (int64, error)
	FindByIDsFunc func(ctx context.Context, tenantID string, ids []string) ([]entity.Student, error)
}

func (m *mockRosterRepository) CountWithReferencePhotos(ctx context.Context, tenantID string) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, tenantID)
	}
	return 10, nil
}

func (m *mockRosterRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]entity.Student, error) {
	if m.FindByIDsFunc != nil {
		return m.FindByIDsFunc(ctx, tenantID, ids)
	}
	return nil, nil
}

// mockAttendanceRepository はAttendanceRepositoryインターフェースのモック実装です。
type mockAttendanceRepository struct {
	CreateFunc  func(ctx context.Context, rec *entity.AttendanceRecord) error
	CreateCalls int
}

func (m *mockAttendanceRepository) Create(ctx context.Context, rec *entity.AttendanceRecord) error {
	m.CreateCalls++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	rec.ID = "attendance-1"
	return nil
}

// mockEvidenceStore はEvidenceStoreインターフェースのモック実装です。
type mockEvidenceStore struct {
	SaveFunc func(ctx context.Context, tenantID string, photo *entity.EvidencePhoto) (string, string, error)
	deleted  []string
}

func (m *mockEvidenceStore) Save(ctx context.Context, tenantID string, photo *entity.EvidencePhoto) (string, string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tenantID, photo)
	}
	return tenantID + "/evidence.jpg", "digest", nil
}

func (m *mockEvidenceStore) Delete(ctx context.Context, ref string) error {
	m.deleted = append(m.deleted, ref)
	return nil
}

// mockCommitGuard はCommitGuardインターフェースのモック実装です。
type mockCommitGuard struct {
	AcquireFunc func(ctx context.Context, key string) error
	acquired    []string
	completed   []string
	released    []string
}

func (m *mockCommitGuard) Acquire(ctx context.Context, key string) error {
	m.acquired = append(m.acquired, key)
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key)
	}
	return nil
}

func (m *mockCommitGuard) Complete(ctx context.Context, key string) error {
	m.completed = append(m.completed, key)
	return nil
}

func (m *mockCommitGuard) Release(ctx context.Context, key string) error {
	m.released = append(m.released, key)
	return nil
}

// mockRecognizer はRecognizerインターフェースのモック実装です。
type mockRecognizer struct {
	RecognizeFunc func(ctx context.Context, img *usecase.CapturedImage, tenantID string) (*usecase.RecognitionResult, error)
}

func (m *mockRecognizer) Recognize(ctx context.Context, img *usecase.CapturedImage, tenantID string) (*usecase.RecognitionResult, error) {
	return m.RecognizeFunc(ctx, img, tenantID)
}

// mockCommitter はCommitterインターフェースのモック実装です。
type mockCommitter struct {
	CommitFunc  func(ctx context.Context, draft *entity.AttendanceDraft, classID *string) (*entity.AttendanceRecord, error)
	CommitCalls int
}

func (m *mockCommitter) Commit(ctx context.Context, draft *entity.AttendanceDraft, classID *string) (*entity.AttendanceRecord, error) {
	m.CommitCalls++
	return m.CommitFunc(ctx, draft, classID)
}

// matched は一致済みの顔を生成するヘルパーです。
func matched(id, studentID, name string, confidence float64) entity.DetectedFace {
	return entity.DetectedFace{
		FaceID:      id,
		BoundingBox: &entity.BoundingBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.3},
		SuggestedMatch: &entity.SuggestedMatch{
			StudentID: studentID, StudentName: name, Confidence: confidence, Matched: true,
		},
	}
}

// unmatched は一致なしの顔を生成するヘルパーです。
func unmatched(id string) entity.DetectedFace {
	return entity.DetectedFace{
		FaceID:      id,
		BoundingBox: &entity.BoundingBox{X: 0.6, Y: 0.2, Width: 0.2, Height: 0.3},
	}
}

// twoMatchedOneUnknown は Alice 92%・Bob 81% が一致し、1人が不明な認識結果です。
func twoMatchedOneUnknown() *usecase.RecognitionResult {
	return &usecase.RecognitionResult{
		Shape: usecase.ShapePerFace,
		Faces: []entity.DetectedFace{
			matched("face-1", "alice", "Alice", 92),
			matched("face-2", "bob", "Bob", 81),
			unmatched("face-3"),
		},
	}
}

package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	// imaging.Decode は image.Decode を使うため、WebP デコーダーを登録しておきます。
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"academy_backend/internal/feature/attendance/domain/entity"
)

const (
	// MaxImageSize はアップロード画像の最大サイズ（10MB）です。
	MaxImageSize = 10 * 1024 * 1024
	// MaxImageDimension は認識サービスに送る画像の長辺の上限（ピクセル）です。
	MaxImageDimension = 1920
	// JPEGQuality は撮影画像をエンコードする際の品質です。
	JPEGQuality = 90
)

// Camera は1つのライブ映像ストリームです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Camera interface {
	// ReadFrame は現在のフレームを返します。まだフレームがない場合は ErrFrameNotReady を返します。
	ReadFrame(ctx context.Context) (image.Image, error)
	// Close はデバイスを解放します。
	Close() error
}

// CameraProvider はセッションごとにカメラを開きます。背面カメラを優先します。
type CameraProvider interface {
	Open(ctx context.Context, sessionID string) (Camera, error)
}

// CapturedImage は撮影またはアップロードされた1枚の静止画です。
type CapturedImage struct {
	Data     []byte // JPEG
	MIMEType string
	Width    int
	Height   int
	TakenAt  *time.Time
	Frame    image.Image // サムネイル切り出し用のデコード済み画像
}

// Evidence は監査用の EvidencePhoto に変換します。
func (c *CapturedImage) Evidence() *entity.EvidencePhoto {
	if c == nil {
		return nil
	}
	return &entity.EvidencePhoto{
		Data:     c.Data,
		MIMEType: c.MIMEType,
		Width:    c.Width,
		Height:   c.Height,
		TakenAt:  c.TakenAt,
	}
}

// CaptureSource はカメラまたはファイルから静止画を取得します。
// 同時にアクティブなストリームは常に1つです。ロックは呼び出し側（Workflow）が保持します。
type CaptureSource struct {
	sessionID string
	provider  CameraProvider
	camera    Camera
	still     image.Image
	takenAt   *time.Time
}

// NewCaptureSource はCaptureSourceの新しいインスタンスを生成します。provider は nil でも構いません。
func NewCaptureSource(sessionID string, provider CameraProvider) *CaptureSource {
	return &CaptureSource{sessionID: sessionID, provider: provider}
}

// OpenCamera はプロバイダーからライブストリームを開きます。状態は変更しないため、ロックなしで呼び出せます。
// 失敗時は ErrCameraUnavailable を返し、自動リトライはしません。
func (s *CaptureSource) OpenCamera(ctx context.Context) (Camera, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no camera provider configured", ErrCameraUnavailable)
	}
	cam, err := s.provider.Open(ctx, s.sessionID)
	if err != nil {
		if errors.Is(err, ErrCameraUnavailable) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	return cam, nil
}

// Attach は開いたストリームをアクティブにします。既存のストリームと読み込んだファイルは破棄します。
func (s *CaptureSource) Attach(cam Camera) {
	s.Clear()
	s.camera = cam
}

// LoadFile はアップロードされた画像を読み込みます。アクティブなストリームは停止します。
func (s *CaptureSource) LoadFile(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if len(data) > MaxImageSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrImageTooLarge, len(data), MaxImageSize)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return fmt.Errorf("%w: zero dimensions", ErrInvalidImage)
	}

	s.Stop()
	s.still = img
	s.takenAt = takenAt(data)
	return nil
}

// Capture は現在のフレーム（または読み込んだファイル）を JPEG にエンコードします。
// フレームのサイズが 0 の場合は ErrFrameNotReady を返し、不完全な画像は生成しません。
func (s *CaptureSource) Capture(ctx context.Context) (*CapturedImage, error) {
	frame := s.still
	if frame == nil {
		if s.camera == nil {
			return nil, fmt.Errorf("%w: no active stream or file", ErrFrameNotReady)
		}
		f, err := s.camera.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, ErrFrameNotReady) || errors.Is(err, ErrCameraUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrFrameNotReady, err)
		}
		frame = f
	}
	if frame == nil || frame.Bounds().Dx() == 0 || frame.Bounds().Dy() == 0 {
		return nil, ErrFrameNotReady
	}

	b := frame.Bounds()
	if b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension {
		frame = imaging.Fit(frame, MaxImageDimension, MaxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return &CapturedImage{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    frame.Bounds().Dx(),
		Height:   frame.Bounds().Dy(),
		TakenAt:  s.takenAt,
		Frame:    frame,
	}, nil
}

// Active はライブストリームが開いているかを返します。
func (s *CaptureSource) Active() bool {
	return s.camera != nil
}

// Stop はライブストリームを解放します。ストリームがなくても安全に呼び出せます。
func (s *CaptureSource) Stop() {
	if s.camera == nil {
		return
	}
	if err := s.camera.Close(); err != nil {
		slog.Warn("カメラの解放に失敗", "session_id", s.sessionID, "error", err)
	}
	s.camera = nil
}

// Clear はストリームを停止し、読み込んだファイルも破棄します。
func (s *CaptureSource) Clear() {
	s.Stop()
	s.still = nil
	s.takenAt = nil
}

// release は使われなかったストリームを閉じます。
func (s *CaptureSource) release(cam Camera) {
	if cam == nil {
		return
	}
	if err := cam.Close(); err != nil {
		slog.Warn("カメラの解放に失敗", "session_id", s.sessionID, "error", err)
	}
}

// takenAt は EXIF の撮影日時を返します。取得できない場合は nil です。
func takenAt(data []byte) *time.Time {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

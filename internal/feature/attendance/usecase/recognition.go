package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// RecognitionService は外部の顔検出・照合サービスです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type RecognitionService interface {
	// Recognize は画像をテナントの名簿と照合します。
	// 失敗は *RecognitionError、名簿が空の場合は ErrEmptyRoster を返します。
	Recognize(ctx context.Context, req entity.RecognitionRequest) (*entity.RecognitionResponse, error)
}

// RosterRepository はテナントの生徒名簿を読み取ります。
type RosterRepository interface {
	// CountWithReferencePhotos は参照写真が登録された生徒数を返します。
	CountWithReferencePhotos(ctx context.Context, tenantID string) (int64, error)
	// FindByIDs は指定IDの生徒を返します。存在しないIDは無視されます。
	FindByIDs(ctx context.Context, tenantID string, ids []string) ([]entity.Student, error)
}

// RecognitionResult は正規化済みの認識結果です。
type RecognitionResult struct {
	Shape    ResponseShape
	Faces    []entity.DetectedFace
	Students map[string]entity.Student // 一致した生徒の名簿情報（StudentID がキー）
}

// NoFacesDetected は顔が1つも検出されなかったかを返します。
func (r *RecognitionResult) NoFacesDetected() bool {
	return len(r.Faces) == 0
}

// RecognitionClient は撮影画像を外部サービスに送り、結果を正規化します。
// クライアント内ではリトライしません。
type RecognitionClient struct {
	service       RecognitionService
	roster        RosterRepository
	minConfidence float64
}

// NewRecognitionClient はRecognitionClientの新しいインスタンスを生成します。
// minConfidence が 0 より大きい場合、それ未満の一致をローカルで不一致に格下げします。
func NewRecognitionClient(service RecognitionService, roster RosterRepository, minConfidence float64) *RecognitionClient {
	return &RecognitionClient{service: service, roster: roster, minConfidence: minConfidence}
}

// Recognize は画像をテナントの名簿と照合します。
func (c *RecognitionClient) Recognize(ctx context.Context, img *CapturedImage, tenantID string) (*RecognitionResult, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImage
	}

	count, err := c.roster.CountWithReferencePhotos(ctx, tenantID)
	if err != nil {
		return nil, NewRecognitionError(ErrRecognitionTransport, fmt.Errorf("count roster: %w", err))
	}
	if count == 0 {
		return nil, ErrEmptyRoster
	}

	resp, err := c.service.Recognize(ctx, entity.RecognitionRequest{
		TenantID: tenantID,
		Image:    img.Data,
		MIMEType: img.MIMEType,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyRoster), errors.Is(err, ErrRecognitionService):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		return nil, NewRecognitionError(ErrRecognitionTransport, err)
	}
	if resp == nil {
		return nil, NewRecognitionError(ErrRecognitionTransport, errors.New("empty response"))
	}

	shape, faces := NormalizeResponse(resp)
	c.applyThreshold(faces)

	return &RecognitionResult{
		Shape:    shape,
		Faces:    faces,
		Students: c.enrich(ctx, tenantID, faces),
	}, nil
}

// applyThreshold は minConfidence 未満の一致を格下げします。一致への格上げはしません。
func (c *RecognitionClient) applyThreshold(faces []entity.DetectedFace) {
	if c.minConfidence <= 0 {
		return
	}
	for _, f := range faces {
		m := f.SuggestedMatch
		if m != nil && m.Matched && m.Confidence < c.minConfidence {
			slog.Info("信頼度が閾値未満のため一致を取り消し",
				"face_id", f.FaceID, "confidence", m.Confidence, "min_confidence", c.minConfidence)
			m.Matched = false
		}
	}
}

// enrich は一致した生徒の帯・写真を名簿から取得します。失敗しても認識結果は返します。
func (c *RecognitionClient) enrich(ctx context.Context, tenantID string, faces []entity.DetectedFace) map[string]entity.Student {
	var ids []string
	seen := map[string]struct{}{}
	for _, f := range faces {
		if !f.IsMatched() {
			continue
		}
		id := f.SuggestedMatch.StudentID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	students, err := c.roster.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		slog.Warn("生徒情報の取得に失敗", "tenant_id", tenantID, "error", err)
		return nil
	}

	out := make(map[string]entity.Student, len(students))
	for _, s := range students {
		out[s.ID] = s
	}
	for _, f := range faces {
		if f.IsMatched() && f.SuggestedMatch.StudentName == "" {
			f.SuggestedMatch.StudentName = out[f.SuggestedMatch.StudentID].Name
		}
	}
	return out
}

package edgefunction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"academy_backend/internal/feature/attendance/adapters/edgefunction/dto"
	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

// maxResponseSize はレスポンスボディの読み取り上限です。
const maxResponseSize = 1 << 20

// Client はエッジ関数を呼び出すRecognitionService兼AttendanceRepository実装です。
// 呼び出しごとのリトライは行いません。
type Client struct {
	cfg      Config
	client   *http.Client
	validate *validator.Validate
	now      func() time.Time
}

// ClientがRecognitionServiceとAttendanceRepositoryを実装していることをコンパイル時に検証します。
var (
	_ usecase.RecognitionService   = (*Client)(nil)
	_ usecase.AttendanceRepository = (*Client)(nil)
)

// NewClient は指定された設定とHTTPクライアントでClientの新しいインスタンスを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{
		cfg:      cfg,
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/functions/v1/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.FunctionName)
}

// Recognize は画像をbase64で送信し、顔認識結果を返します。
//
// エラー:
//   - 429 または code=rate_limited: ErrRateLimited 種別の RecognitionError
//   - 402 または code=quota_exhausted: ErrQuotaExhausted 種別の RecognitionError
//   - code=empty_roster: usecase.ErrEmptyRoster
//   - その他の失敗: ErrRecognitionTransport 種別の RecognitionError
func (c *Client) Recognize(ctx context.Context, req entity.RecognitionRequest) (*entity.RecognitionResponse, error) {
	body := dto.RecognizeRequest{
		Action:      dto.ActionRecognize,
		ImageBase64: base64.StdEncoding.EncodeToString(req.Image),
		TenantID:    req.TenantID,
	}
	if err := c.validate.Struct(body); err != nil {
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("invalid request: %w", err))
	}

	status, raw, err := c.post(ctx, body, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, err)
	}

	var res dto.RecognizeResponse
	decodeErr := json.Unmarshal(raw, &res)

	switch {
	case status == http.StatusTooManyRequests || res.Code == dto.CodeRateLimited:
		return nil, usecase.NewRecognitionError(usecase.ErrRateLimited, fmt.Errorf("edge function http %d", status))
	case status == http.StatusPaymentRequired || res.Code == dto.CodeQuotaExhausted:
		return nil, usecase.NewRecognitionError(usecase.ErrQuotaExhausted, fmt.Errorf("edge function http %d", status))
	case res.Code == dto.CodeEmptyRoster:
		return nil, usecase.ErrEmptyRoster
	case status >= 400:
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("edge function http %d: %s", status, res.Error))
	case decodeErr != nil:
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("decode response: %w", decodeErr))
	case !res.Success:
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("edge function: %s", res.Error))
	}
	if err := c.validate.Struct(res); err != nil {
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("invalid response: %w", err))
	}

	return toRecognitionResponse(res), nil
}

// Create は record_attendance を呼び出して出席記録を作成します。
// DraftID を Idempotency-Key として送るため、同じ下書きの再送は 409 となり ErrAlreadyCommitted を返します。
func (c *Client) Create(ctx context.Context, rec *entity.AttendanceRecord) error {
	body := dto.RecordAttendanceRequest{
		Action:             dto.ActionRecordAttendance,
		TenantID:           rec.TenantID,
		ClassID:            rec.ClassID,
		DraftID:            rec.DraftID,
		RecognizedStudents: make([]dto.RecognizedStudent, 0, len(rec.Students)),
		VisitorCount:       rec.VisitorCount,
		ExperimentalCount:  rec.ExperimentalCount,
		EvidencePhotoRef:   rec.EvidencePhotoRef,
		EvidenceDigest:     rec.EvidenceDigest,
	}
	for _, s := range rec.Students {
		body.RecognizedStudents = append(body.RecognizedStudents, dto.RecognizedStudent{StudentID: s.StudentID, Confidence: s.Confidence})
	}
	if rec.CapturedAt != nil {
		body.CapturedAt = rec.CapturedAt.UTC().Format(time.RFC3339)
	}
	if err := c.validate.Struct(body); err != nil {
		return fmt.Errorf("invalid attendance request: %w", err)
	}

	status, raw, err := c.post(ctx, body, rec.DraftID)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		return usecase.ErrAlreadyCommitted
	}

	var res dto.RecordAttendanceResponse
	if err := json.Unmarshal(raw, &res); err != nil && status < 400 {
		return fmt.Errorf("decode response: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("edge function http %d: %s", status, res.Error)
	}
	if err := c.validate.Struct(res); err != nil {
		return fmt.Errorf("invalid attendance response: %w", err)
	}

	rec.ID = res.AttendanceID
	rec.CreatedAt = c.now().UTC()
	return nil
}

// post はJSONボディを送信し、ステータスコードとレスポンスボディを返します。
func (c *Client) post(ctx context.Context, body any, idempotencyKey string) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AnonKey)
	req.Header.Set("apikey", c.cfg.AnonKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return res.StatusCode, raw, nil
}

func toRecognitionResponse(res dto.RecognizeResponse) *entity.RecognitionResponse {
	out := &entity.RecognitionResponse{
		Success:           res.Success,
		RecognizedAny:     res.RecognizedAny,
		DetectedFaceCount: res.DetectedFaceCount,
	}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, entity.Match{
			StudentID:   m.StudentID,
			StudentName: m.StudentName,
			Confidence:  m.Confidence,
			Matched:     m.Matched,
		})
	}
	if res.PerFaceDetections == nil {
		return out
	}
	out.PerFaceDetections = make([]entity.PerFaceDetection, 0, len(res.PerFaceDetections))
	for _, d := range res.PerFaceDetections {
		pf := entity.PerFaceDetection{FaceID: d.FaceID}
		if d.BoundingBox != nil {
			pf.BoundingBox = &entity.BoundingBox{X: d.BoundingBox.X, Y: d.BoundingBox.Y, Width: d.BoundingBox.Width, Height: d.BoundingBox.Height}
		}
		if d.SuggestedMatch != nil {
			pf.SuggestedMatch = &entity.SuggestedMatch{
				StudentID:   d.SuggestedMatch.StudentID,
				StudentName: d.SuggestedMatch.StudentName,
				Confidence:  d.SuggestedMatch.Confidence,
				Matched:     d.SuggestedMatch.Matched,
			}
		}
		out.PerFaceDetections = append(out.PerFaceDetections, pf)
	}
	return out
}

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
	"academy_backend/internal/shared/ratelimiter"
)

const (
	// MatchThreshold は一致とみなす信頼度の下限です。
	MatchThreshold = 70.0

	maxReferences    = 40
	maxReferenceSize = 5 << 20
)

const matchPrompt = `You compare face crops from a class photo against reference photos of enrolled students.
Each reference image is preceded by its student_id and each face crop by its face_id.
For every face_id return the student_id of the same person, or an empty student_id when no reference matches.
confidence is a number from 0 to 100. Never assign one student_id to more than one face.`

// FaceDetector は画像から顔の矩形を検出します。
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte) ([]entity.BoundingBox, error)
}

// RosterSource は照合対象の生徒一覧を返します。
type RosterSource interface {
	ListWithReferencePhotos(ctx context.Context, tenantID string) ([]entity.Student, error)
}

// ContentGenerator は genai.Models のうち利用するメソッドです。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// FaceRecognizer はVisionで顔を検出し、Geminiで参照写真と照合するRecognitionService実装です。
type FaceRecognizer struct {
	models   ContentGenerator
	model    string
	detector FaceDetector
	roster   RosterSource
	client   *http.Client
	limiter  ratelimiter.Limiter
}

// FaceRecognizerがRecognitionServiceを実装していることをコンパイル時に検証します。
var _ usecase.RecognitionService = (*FaceRecognizer)(nil)

// NewGenAIClient はGeminiクライアントを生成します。
// APIキーが空の場合は環境変数 GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION とADCを使用します。
func NewGenAIClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	var cc *genai.ClientConfig
	if cfg.APIKey != "" {
		cc = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// NewFaceRecognizer はFaceRecognizerの新しいインスタンスを生成します。
// client は参照写真の取得に使用します。
func NewFaceRecognizer(models ContentGenerator, model string, detector FaceDetector, roster RosterSource, client *http.Client, limiter ratelimiter.Limiter) *FaceRecognizer {
	if model == "" {
		model = DefaultModel
	}
	return &FaceRecognizer{
		models:   models,
		model:    model,
		detector: detector,
		roster:   roster,
		client:   client,
		limiter:  limiter,
	}
}

type reference struct {
	student  entity.Student
	data     []byte
	mimeType string
}

type faceMatch struct {
	FaceID     string  `json:"faceId"`
	StudentID  string  `json:"studentId"`
	Confidence float64 `json:"confidence"`
}

type matchResult struct {
	Faces []faceMatch `json:"faces"`
}

// Recognize は画像内の顔を検出し、テナントの参照写真と照合します。
// 常に顔ごとの形式でレスポンスを返します。
func (r *FaceRecognizer) Recognize(ctx context.Context, req entity.RecognitionRequest) (*entity.RecognitionResponse, error) {
	students, err := r.roster.ListWithReferencePhotos(ctx, req.TenantID)
	if err != nil {
		return nil, classifyError(ctx, fmt.Errorf("list roster: %w", err))
	}
	if len(students) == 0 {
		return nil, usecase.ErrEmptyRoster
	}

	boxes, err := r.detector.DetectFaces(ctx, req.Image)
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	resp := &entity.RecognitionResponse{
		Success:           true,
		DetectedFaceCount: len(boxes),
		PerFaceDetections: make([]entity.PerFaceDetection, 0, len(boxes)),
	}
	for i := range boxes {
		box := boxes[i]
		resp.PerFaceDetections = append(resp.PerFaceDetections, entity.PerFaceDetection{
			FaceID:      fmt.Sprintf("face-%d", i+1),
			BoundingBox: &box,
		})
	}
	if len(boxes) == 0 {
		return resp, nil
	}

	frame, err := imaging.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("decode image: %w", err))
	}

	refs := r.fetchReferences(ctx, students)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		slog.Warn("参照写真を1枚も取得できませんでした", "tenant_id", req.TenantID, "students", len(students))
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport,
			fmt.Errorf("no reference photos available for %d students", len(students)))
	}

	parts := []*genai.Part{genai.NewPartFromText(matchPrompt)}
	for _, ref := range refs {
		parts = append(parts,
			genai.NewPartFromText("student_id="+ref.student.ID),
			genai.NewPartFromBytes(ref.data, ref.mimeType),
		)
	}
	cropped := 0
	for _, d := range resp.PerFaceDetections {
		crop := usecase.CropThumbnail(frame, d.BoundingBox)
		if crop == nil {
			continue
		}
		cropped++
		parts = append(parts,
			genai.NewPartFromText("face_id="+d.FaceID),
			genai.NewPartFromBytes(crop, "image/jpeg"),
		)
	}
	if cropped == 0 {
		return resp, nil
	}

	if r.limiter != nil {
		if err := r.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}
	}

	temperature := float32(0)
	out, err := r.models.GenerateContent(ctx, r.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      &temperature,
			ResponseMIMEType: "application/json",
			ResponseSchema:   matchSchema(),
		})
	if err != nil {
		return nil, classifyError(ctx, fmt.Errorf("gemini API request failed: %w", err))
	}

	var result matchResult
	if err := json.Unmarshal([]byte(out.Text()), &result); err != nil {
		return nil, usecase.NewRecognitionError(usecase.ErrRecognitionTransport, fmt.Errorf("decode gemini response: %w", err))
	}

	applyMatches(resp, result, refs)
	return resp, nil
}

// applyMatches はGeminiの照合結果を顔ごとの検出結果に反映します。
// 名簿にない student_id や重複した割り当ては無視します。
func applyMatches(resp *entity.RecognitionResponse, result matchResult, refs []reference) {
	known := make(map[string]entity.Student, len(refs))
	for _, ref := range refs {
		known[ref.student.ID] = ref.student
	}
	byFace := make(map[string]faceMatch, len(result.Faces))
	for _, m := range result.Faces {
		byFace[m.FaceID] = m
	}

	used := make(map[string]bool)
	for i := range resp.PerFaceDetections {
		d := &resp.PerFaceDetections[i]
		m, ok := byFace[d.FaceID]
		if !ok || m.StudentID == "" || used[m.StudentID] {
			continue
		}
		student, ok := known[m.StudentID]
		if !ok {
			continue
		}
		used[m.StudentID] = true
		matched := m.Confidence >= MatchThreshold
		d.SuggestedMatch = &entity.SuggestedMatch{
			StudentID:   student.ID,
			StudentName: student.Name,
			Confidence:  m.Confidence,
			Matched:     matched,
		}
		resp.Matches = append(resp.Matches, entity.Match{
			StudentID:   student.ID,
			StudentName: student.Name,
			Confidence:  m.Confidence,
			Matched:     matched,
		})
		if matched {
			resp.RecognizedAny = true
		}
	}
}

// fetchReferences は参照写真をダウンロードします。取得できなかった生徒は読み飛ばします。
func (r *FaceRecognizer) fetchReferences(ctx context.Context, students []entity.Student) []reference {
	if len(students) > maxReferences {
		slog.Warn("参照写真が多すぎるため先頭のみ使用します", "count", len(students), "limit", maxReferences)
		students = students[:maxReferences]
	}
	refs := make([]reference, 0, len(students))
	for _, s := range students {
		if ctx.Err() != nil {
			return refs
		}
		data, err := r.download(ctx, s.ReferencePhotoURL)
		if err != nil {
			slog.Warn("参照写真の取得に失敗", "error", err, "student_id", s.ID)
			continue
		}
		refs = append(refs, reference{student: s, data: data, mimeType: http.DetectContentType(data)})
	}
	return refs
}

func (r *FaceRecognizer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("reference photo http %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, maxReferenceSize))
}

func matchSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"faces": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"faceId":     {Type: genai.TypeString},
						"studentId":  {Type: genai.TypeString},
						"confidence": {Type: genai.TypeNumber},
					},
					Required: []string{"faceId", "studentId", "confidence"},
				},
			},
		},
		Required: []string{"faces"},
	}
}

// classifyError は上流のエラーを RecognitionError の種別に振り分けます。
func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusPaymentRequired:
			return usecase.NewRecognitionError(usecase.ErrQuotaExhausted, err)
		case apiErr.Code == http.StatusTooManyRequests && strings.Contains(strings.ToLower(apiErr.Message), "quota"):
			return usecase.NewRecognitionError(usecase.ErrQuotaExhausted, err)
		case apiErr.Code == http.StatusTooManyRequests:
			return usecase.NewRecognitionError(usecase.ErrRateLimited, err)
		}
	}
	if status.Code(err) == codes.ResourceExhausted {
		return usecase.NewRecognitionError(usecase.ErrRateLimited, err)
	}
	return usecase.NewRecognitionError(usecase.ErrRecognitionTransport, err)
}

// Package handler はattendanceフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"academy_backend/internal/api"
	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/transport/messages"
	"academy_backend/internal/feature/attendance/usecase"
	jwtmw "academy_backend/internal/platform/jwt"
)

// Sessions はオペレーターごとのワークフローセッションを管理します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type Sessions interface {
	Create(tenantID string, classID *string) *usecase.Workflow
	Get(tenantID, id string) (*usecase.Workflow, error)
	Remove(tenantID, id string) error
}

// StreamServer はブラウザからのカメラ映像（WebSocket）を受け付けます。
type StreamServer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string) error
	// Disconnect はセッションのストリームを閉じます。
	Disconnect(sessionID string)
}

// AttendanceHandler は顔認識による出席登録のHTTPリクエストを処理します。
type AttendanceHandler struct {
	sessions Sessions
	stream   StreamServer
	msgs     *messages.Catalog
}

// NewAttendanceHandler は指定された依存関係でAttendanceHandlerの新しいインスタンスを生成します。
// stream が nil の場合、ストリームのエンドポイントは 404 を返します（端末カメラ構成）。
func NewAttendanceHandler(sessions Sessions, stream StreamServer, msgs *messages.Catalog) *AttendanceHandler {
	return &AttendanceHandler{sessions: sessions, stream: stream, msgs: msgs}
}

// CreateSession は新しい出席登録セッションを作成します。
//
// POST /v1/attendance/sessions
func (h *AttendanceHandler) CreateSession(c *gin.Context) {
	var req api.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	w := h.sessions.Create(jwtmw.TenantID(c), normalizeClassID(req.ClassId))
	slog.Info("出席登録セッションを作成", "session_id", w.ID(), "tenant_id", w.TenantID(), "operator_id", jwtmw.OperatorID(c))
	c.JSON(http.StatusCreated, h.state(w.Snapshot()))
}

// GetSession はセッションの現在の状態を返します。
//
// GET /v1/attendance/sessions/:id
func (h *AttendanceHandler) GetSession(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state(w.Snapshot()))
}

// SetClass はコミット時に紐付けるクラスを設定します。class_id が null または空なら解除します。
//
// PUT /v1/attendance/sessions/:id/class
func (h *AttendanceHandler) SetClass(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var req api.SetClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.respond(c, w, http.StatusOK, w.SetClass(normalizeClassID(req.ClassId)))
}

// Stream はブラウザのカメラ映像をWebSocketで受け付けます。
//
// GET /v1/attendance/sessions/:id/stream
func (h *AttendanceHandler) Stream(c *gin.Context) {
	if h.stream == nil {
		h.fail(c, http.StatusNotFound, "stream_unavailable", errors.New("browser streaming disabled"))
		return
	}
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	// Upgrade 後は gin のレスポンスを書き込まない
	if err := h.stream.Serve(c.Writer, c.Request, w.ID()); err != nil {
		slog.Warn("カメラストリームが終了", "session_id", w.ID(), "error", err)
	}
}

// StartCamera はライブカメラを開始します。
//
// POST /v1/attendance/sessions/:id/camera
func (h *AttendanceHandler) StartCamera(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	h.respond(c, w, http.StatusOK, w.StartCamera(c.Request.Context()))
}

// Capture は現在のフレームを撮影します。
//
// POST /v1/attendance/sessions/:id/capture
func (h *AttendanceHandler) Capture(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	h.respond(c, w, http.StatusOK, w.Capture(c.Request.Context()))
}

// UploadPhoto は multipart の image フィールドで受け取った画像を撮影済みにします。
//
// POST /v1/attendance/sessions/:id/photo
func (h *AttendanceHandler) UploadPhoto(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	if fh.Size > usecase.MaxImageSize {
		h.respond(c, w, 0, fmt.Errorf("%w: %d bytes", usecase.ErrImageTooLarge, fh.Size))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.badRequest(c, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close uploaded file", "error", err)
		}
	}()
	data, err := io.ReadAll(io.LimitReader(f, usecase.MaxImageSize+1))
	if err != nil {
		h.badRequest(c, err)
		return
	}

	h.respond(c, w, http.StatusOK, w.UploadPhoto(c.Request.Context(), data))
}

// Recognize は撮影画像を認識サービスに送ります。
// 認識エラーの場合、セッションは select に戻ります。
//
// POST /v1/attendance/sessions/:id/recognize
func (h *AttendanceHandler) Recognize(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	h.respond(c, w, http.StatusOK, w.Recognize(c.Request.Context()))
}

// Decide は検出顔の分類を設定します。
//
// PUT /v1/attendance/sessions/:id/faces/:faceId
func (h *AttendanceHandler) Decide(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	var req api.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	d, valid := entity.ParseDecision(req.Decision)
	if !valid {
		h.badRequest(c, fmt.Errorf("unknown decision %q", req.Decision))
		return
	}
	h.respond(c, w, http.StatusOK, w.Decide(c.Param("faceId"), d))
}

// Commit は分類結果を出席記録として確定します。
//
// POST /v1/attendance/sessions/:id/commit
func (h *AttendanceHandler) Commit(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	rec, err := w.Commit(c.Request.Context())
	if rec != nil {
		slog.Info("出席を記録", "session_id", w.ID(), "tenant_id", w.TenantID(), "attendance_id", rec.ID,
			"students", len(rec.Students), "visitors", rec.VisitorCount, "experimental", rec.ExperimentalCount)
	}
	h.respond(c, w, http.StatusCreated, err)
}

// Reset はセッションを最初のステップに戻します。
//
// POST /v1/attendance/sessions/:id/reset
func (h *AttendanceHandler) Reset(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}
	w.Reset()
	c.JSON(http.StatusOK, h.state(w.Snapshot()))
}

// DeleteSession はセッションを終了し、カメラを解放します。
//
// DELETE /v1/attendance/sessions/:id
func (h *AttendanceHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Remove(jwtmw.TenantID(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	if h.stream != nil {
		h.stream.Disconnect(id)
	}
	c.Status(http.StatusNoContent)
}

// workflow はパスのセッションを取得します。見つからない場合はレスポンスを書き込み false を返します。
func (h *AttendanceHandler) workflow(c *gin.Context) (*usecase.Workflow, bool) {
	w, err := h.sessions.Get(jwtmw.TenantID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return w, true
}

// respond は err が nil ならセッションの状態を、そうでなければエラーを返します。
func (h *AttendanceHandler) respond(c *gin.Context, w *usecase.Workflow, status int, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, h.state(w.Snapshot()))
}

func (h *AttendanceHandler) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	h.fail(c, status, code, err)
}

func (h *AttendanceHandler) badRequest(c *gin.Context, err error) {
	h.fail(c, http.StatusBadRequest, "invalid_request", err)
}

func (h *AttendanceHandler) fail(c *gin.Context, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("attendance request failed", "path", c.FullPath(), "code", code, "error", err)
	} else {
		slog.Warn("attendance request rejected", "path", c.FullPath(), "code", code, "error", err)
	}
	c.AbortWithStatusJSON(status, api.ErrorResponse{Error: h.msgs.Message(code), Code: code})
}

// state はワークフローの状態をレスポンスに変換します。
func (h *AttendanceHandler) state(s usecase.WorkflowState) api.SessionStateResponse {
	id, _ := uuid.Parse(s.SessionID)
	out := api.SessionStateResponse{
		SessionId:       id,
		ClassId:         s.ClassID,
		Step:            string(s.Step),
		CameraActive:    s.CameraActive,
		HasImage:        s.HasImage,
		ResponseShape:   string(s.Shape),
		NoFacesDetected: s.NoFacesDetected,
		CanFinalize:     s.CanFinalize,
		Counts: api.Counts{
			Recognized:   s.Counts.Recognized,
			Pending:      s.Counts.Pending,
			Visitors:     s.Counts.Visitors,
			Experimental: s.Counts.Experimental,
			Ignored:      s.Counts.Ignored,
		},
		Faces: make([]api.FaceResponse, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		out.Faces = append(out.Faces, toFaceResponse(e))
	}
	if s.Record != nil {
		out.Record = toRecordResponse(s.Record)
	}
	if s.Notice != nil {
		_, code := classify(s.Notice)
		out.Notice = &api.Notice{Code: code, Message: h.msgs.Message(code)}
	}
	return out
}

func toFaceResponse(e entity.FaceReconciliationEntry) api.FaceResponse {
	f := api.FaceResponse{FaceId: e.Face.FaceID, Decision: string(e.Decision)}
	if b := e.Face.BoundingBox; b != nil {
		f.BoundingBox = &api.BoundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
	}
	if m := e.Face.SuggestedMatch; m != nil {
		f.SuggestedMatch = &api.SuggestedMatch{
			StudentId:   m.StudentID,
			StudentName: m.StudentName,
			Confidence:  m.Confidence,
			Matched:     m.Matched,
		}
	}
	if len(e.Thumbnail) > 0 {
		f.Thumbnail = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(e.Thumbnail)
	}
	if e.Student != nil {
		f.Student = &api.StudentSummary{Name: e.Student.Name, BeltRank: e.Student.BeltRank, PhotoUrl: e.Student.PhotoURL}
	}
	return f
}

func toRecordResponse(r *entity.AttendanceRecord) *api.AttendanceRecordResponse {
	out := &api.AttendanceRecordResponse{
		Id:                 r.ID,
		ClassId:            r.ClassID,
		DraftId:            r.DraftID,
		RecognizedStudents: make([]api.RecognizedStudent, 0, len(r.Students)),
		VisitorCount:       r.VisitorCount,
		ExperimentalCount:  r.ExperimentalCount,
		EvidencePhotoRef:   r.EvidencePhotoRef,
		EvidenceDigest:     r.EvidenceDigest,
		CreatedAt:          r.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, s := range r.Students {
		out.RecognizedStudents = append(out.RecognizedStudents, api.RecognizedStudent{StudentId: s.StudentID, Confidence: s.Confidence})
	}
	if r.CapturedAt != nil {
		v := r.CapturedAt.UTC().Format(time.RFC3339)
		out.CapturedAt = &v
	}
	return out
}

func normalizeClassID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

// Routes は出席登録のルートを rg に登録します。rg には認証ミドルウェアが適用されている必要があります。
func (h *AttendanceHandler) Routes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	s := rg.Group("/sessions/:id")
	{
		s.GET("", h.GetSession)
		s.DELETE("", h.DeleteSession)
		s.PUT("/class", h.SetClass)
		s.GET("/stream", h.Stream)
		s.POST("/camera", h.StartCamera)
		s.POST("/capture", h.Capture)
		s.POST("/photo", h.UploadPhoto)
		s.POST("/recognize", h.Recognize)
		s.PUT("/faces/:faceId", h.Decide)
		s.POST("/commit", h.Commit)
		s.POST("/reset", h.Reset)
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"academy_backend/internal/feature/attendance/transport/messages"
	"academy_backend/internal/feature/attendance/usecase"
)

// errorMapping はusecaseのエラーとHTTPステータス・エラーコードの対応です。
// 上から順に評価するため、より具体的なエラーを先に置きます。
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{usecase.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{usecase.ErrCameraUnavailable, http.StatusServiceUnavailable, "camera_unavailable"},
	{usecase.ErrFrameNotReady, http.StatusConflict, "frame_not_ready"},
	{usecase.ErrInvalidImage, http.StatusBadRequest, "invalid_image"},
	{usecase.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "image_too_large"},
	{usecase.ErrNoImage, http.StatusConflict, "no_image"},
	{usecase.ErrEmptyRoster, http.StatusUnprocessableEntity, "empty_roster"},
	{usecase.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{usecase.ErrQuotaExhausted, http.StatusServiceUnavailable, "quota_exhausted"},
	{usecase.ErrRecognitionService, http.StatusBadGateway, "recognition_failed"},
	{usecase.ErrRecognitionInProgress, http.StatusConflict, "recognition_in_progress"},
	{usecase.ErrFaceNotFound, http.StatusNotFound, "face_not_found"},
	{usecase.ErrDecisionNotAssignable, http.StatusUnprocessableEntity, "decision_not_assignable"},
	{usecase.ErrEntryLocked, http.StatusConflict, "entry_locked"},
	{usecase.ErrUnresolvedFaces, http.StatusUnprocessableEntity, "unresolved_faces"},
	{usecase.ErrNothingToConfirm, http.StatusUnprocessableEntity, "nothing_to_confirm"},
	{usecase.ErrCommitInProgress, http.StatusConflict, "commit_in_progress"},
	{usecase.ErrAlreadyCommitted, http.StatusConflict, "already_committed"},
	{usecase.ErrCommit, http.StatusBadGateway, "commit_failed"},
	{usecase.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{context.Canceled, http.StatusConflict, "canceled"},
}

// classify はエラーをHTTPステータスと安定したエラーコードに変換します。
func classify(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, messages.CodeInternal
}

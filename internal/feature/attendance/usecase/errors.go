// Package usecase はattendanceフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrCameraUnavailable is returned when the camera permission is denied or no device exists.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrFrameNotReady is returned when a capture is attempted before the stream has valid dimensions.
	ErrFrameNotReady = errors.New("frame not ready")

	// ErrInvalidImage is returned when an uploaded file cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrImageTooLarge is returned when an uploaded file exceeds MaxImageSize.
	ErrImageTooLarge = errors.New("image too large")

	// ErrNoImage is returned when recognition is requested without a captured image.
	ErrNoImage = errors.New("no captured image")

	// ErrEmptyRoster is returned when the tenant has no students with reference photos.
	ErrEmptyRoster = errors.New("no registered faces to compare against")

	// ErrRecognitionService matches every RecognitionError.
	ErrRecognitionService = errors.New("recognition service error")

	// ErrRateLimited is the RecognitionError kind for throttled requests.
	ErrRateLimited = errors.New("recognition service rate limited")

	// ErrQuotaExhausted is the RecognitionError kind for an exhausted usage quota.
	ErrQuotaExhausted = errors.New("recognition service quota exhausted")

	// ErrRecognitionTransport is the RecognitionError kind for network and protocol failures.
	ErrRecognitionTransport = errors.New("recognition service transport failure")

	// ErrRecognitionInProgress is returned when a second recognition is requested while one is outstanding.
	ErrRecognitionInProgress = errors.New("recognition already in progress")

	// ErrFaceNotFound is returned when a decision targets an unknown face id.
	ErrFaceNotFound = errors.New("face not found")

	// ErrDecisionNotAssignable is returned when the operator requests a decision that only the service can set.
	ErrDecisionNotAssignable = errors.New("decision cannot be assigned by the operator")

	// ErrEntryLocked is returned when the operator tries to reclassify a recognized face.
	ErrEntryLocked = errors.New("recognized face cannot be reclassified")

	// ErrUnresolvedFaces is returned when finalize is requested while a face is still pending.
	ErrUnresolvedFaces = errors.New("faces still pending classification")

	// ErrNothingToConfirm is returned when finalize is requested with zero detected faces.
	ErrNothingToConfirm = errors.New("nothing to confirm")

	// ErrCommit matches every CommitError.
	ErrCommit = errors.New("attendance commit failed")

	// ErrCommitInProgress is returned when the same draft is already being committed.
	ErrCommitInProgress = errors.New("attendance commit already in progress")

	// ErrAlreadyCommitted is returned when a draft has already produced an attendance record.
	ErrAlreadyCommitted = errors.New("attendance already committed")

	// ErrInvalidTransition is returned when an operation is not allowed in the current step.
	ErrInvalidTransition = errors.New("operation not allowed in current step")

	// ErrSessionNotFound is returned when a workflow session cannot be found for the tenant.
	ErrSessionNotFound = errors.New("attendance session not found")
)

// RecognitionError は認識サービス呼び出しの失敗を表します。
// Kind は ErrRateLimited / ErrQuotaExhausted / ErrRecognitionTransport のいずれかです。
type RecognitionError struct {
	Kind error
	Err  error
}

// NewRecognitionError は kind と原因エラーから RecognitionError を生成します。
func NewRecognitionError(kind, err error) *RecognitionError {
	return &RecognitionError{Kind: kind, Err: err}
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Is は ErrRecognitionService と自身の Kind に一致します。
func (e *RecognitionError) Is(target error) bool {
	return target == ErrRecognitionService || target == e.Kind
}

// CommitError は出席記録の作成失敗を表します。
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCommit, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Is は ErrCommit に一致します。
func (e *CommitError) Is(target error) bool {
	return target == ErrCommit
}

// Package dto はエッジ関数とのJSONワイヤフォーマットを定義します。
package dto

const (
	ActionRecognize        = "recognize"
	ActionRecordAttendance = "record_attendance"
)

// Error codes returned in the body of a failed call.
const (
	CodeEmptyRoster    = "empty_roster"
	CodeRateLimited    = "rate_limited"
	CodeQuotaExhausted = "quota_exhausted"
)

// RecognizeRequest is the body of a recognize call.
type RecognizeRequest struct {
	Action      string `json:"action" validate:"eq=recognize"`
	ImageBase64 string `json:"imageBase64" validate:"required,base64"`
	TenantID    string `json:"tenantId" validate:"required"`
}

// BoundingBox is a normalized rectangle.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// SuggestedMatch is the service's best guess for one face.
type SuggestedMatch struct {
	StudentID   string  `json:"studentId"`
	StudentName string  `json:"studentName,omitempty"`
	Confidence  float64 `json:"confidence"`
	Matched     bool    `json:"matched"`
}

// PerFaceDetection is one entry of the per-face payload.
type PerFaceDetection struct {
	FaceID         string          `json:"faceId"`
	BoundingBox    *BoundingBox    `json:"boundingBox,omitempty"`
	SuggestedMatch *SuggestedMatch `json:"suggestedMatch,omitempty"`
}

// Match is one entry of the legacy match list.
type Match struct {
	StudentID   string  `json:"studentId"`
	StudentName string  `json:"studentName"`
	Confidence  float64 `json:"confidence"`
	Matched     bool    `json:"matched"`
}

// RecognizeResponse is the body of a recognize reply.
// PerFaceDetections stays nil when the field is absent (legacy shape).
type RecognizeResponse struct {
	Success           bool               `json:"success"`
	RecognizedAny     bool               `json:"recognizedAny"`
	Matches           []Match            `json:"matches"`
	DetectedFaceCount int                `json:"detectedFaceCount" validate:"gte=0"`
	PerFaceDetections []PerFaceDetection `json:"perFaceDetections,omitempty" validate:"omitempty,dive"`
	Error             string             `json:"error,omitempty"`
	Code              string             `json:"code,omitempty"`
}

// Package api はHTTP APIのリクエスト/レスポンス型を定義します。
package api

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrorResponse はエラー時の共通レスポンスです。
// Code は安定したエラーコード、Error はオペレーター向けメッセージです。
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// CreateSessionRequest defines model for CreateSessionRequest.
type CreateSessionRequest struct {
	ClassId *string `json:"class_id,omitempty"`
}

// SetClassRequest defines model for SetClassRequest.
type SetClassRequest struct {
	ClassId *string `json:"class_id"`
}

// DecisionRequest defines model for DecisionRequest.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

// BoundingBox defines model for BoundingBox.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SuggestedMatch defines model for SuggestedMatch.
type SuggestedMatch struct {
	StudentId   string  `json:"student_id"`
	StudentName string  `json:"student_name,omitempty"`
	Confidence  float64 `json:"confidence"`
	Matched     bool    `json:"matched"`
}

// StudentSummary defines model for StudentSummary.
type StudentSummary struct {
	Name     string `json:"name"`
	BeltRank string `json:"belt_rank,omitempty"`
	PhotoUrl string `json:"photo_url,omitempty"`
}

// FaceResponse defines model for FaceResponse.
type FaceResponse struct {
	FaceId         string          `json:"face_id"`
	BoundingBox    *BoundingBox    `json:"bounding_box,omitempty"`
	SuggestedMatch *SuggestedMatch `json:"suggested_match,omitempty"`
	Decision       string          `json:"decision"`
	Thumbnail      string          `json:"thumbnail,omitempty"` // data URL
	Student        *StudentSummary `json:"student,omitempty"`
}

// Counts defines model for Counts.
type Counts struct {
	Recognized   int `json:"recognized"`
	Pending      int `json:"pending"`
	Visitors     int `json:"visitors"`
	Experimental int `json:"experimental"`
	Ignored      int `json:"ignored"`
}

// RecognizedStudent defines model for RecognizedStudent.
type RecognizedStudent struct {
	StudentId  string  `json:"student_id"`
	Confidence float64 `json:"confidence"`
}

// AttendanceRecordResponse defines model for AttendanceRecordResponse.
type AttendanceRecordResponse struct {
	Id                 string              `json:"id"`
	ClassId            *string             `json:"class_id,omitempty"`
	DraftId            string              `json:"draft_id"`
	RecognizedStudents []RecognizedStudent `json:"recognized_students"`
	VisitorCount       int                 `json:"visitor_count"`
	ExperimentalCount  int                 `json:"experimental_count"`
	EvidencePhotoRef   string              `json:"evidence_photo_ref,omitempty"`
	EvidenceDigest     string              `json:"evidence_digest,omitempty"`
	CapturedAt         *string             `json:"captured_at,omitempty"`
	CreatedAt          string              `json:"created_at"`
}

// Notice defines model for Notice.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionStateResponse defines model for SessionStateResponse.
type SessionStateResponse struct {
	SessionId       openapi_types.UUID        `json:"session_id"`
	ClassId         *string                   `json:"class_id,omitempty"`
	Step            string                    `json:"step"`
	CameraActive    bool                      `json:"camera_active"`
	HasImage        bool                      `json:"has_image"`
	ResponseShape   string                    `json:"response_shape,omitempty"`
	NoFacesDetected bool                      `json:"no_faces_detected"`
	CanFinalize     bool                      `json:"can_finalize"`
	Counts          Counts                    `json:"counts"`
	Faces           []FaceResponse            `json:"faces"`
	Record          *AttendanceRecordResponse `json:"record,omitempty"`
	Notice          *Notice                   `json:"notice,omitempty"`
}

package dto

// RecognizedStudent is one present student in a record_attendance call.
type RecognizedStudent struct {
	StudentID  string  `json:"studentId" validate:"required"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=100"`
}

// RecordAttendanceRequest is the body of a record_attendance call.
type RecordAttendanceRequest struct {
	Action             string              `json:"action" validate:"eq=record_attendance"`
	TenantID           string              `json:"tenantId" validate:"required"`
	ClassID            *string             `json:"classId,omitempty"`
	DraftID            string              `json:"draftId" validate:"required"`
	RecognizedStudents []RecognizedStudent `json:"recognizedStudents" validate:"dive"`
	VisitorCount       int                 `json:"visitorCount" validate:"gte=0"`
	ExperimentalCount  int                 `json:"experimentalCount" validate:"gte=0"`
	EvidencePhotoRef   string              `json:"evidencePhotoRef,omitempty"`
	EvidenceDigest     string              `json:"evidenceDigest,omitempty"`
	CapturedAt         string              `json:"capturedAt,omitempty"`
}

// RecordAttendanceResponse is the body of a record_attendance reply.
type RecordAttendanceResponse struct {
	AttendanceID string `json:"attendanceId" validate:"required"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
}

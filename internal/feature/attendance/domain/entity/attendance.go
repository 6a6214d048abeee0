package entity

import "time"

// RecognizedStudent は出席として記録される生徒と認識信頼度です。
type RecognizedStudent struct {
	StudentID  string  `json:"studentId"`
	Confidence float64 `json:"confidence"`
}

// EvidencePhoto は監査用に保存される撮影画像です。
type EvidencePhoto struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	TakenAt  *time.Time // EXIF の撮影日時（取得できた場合のみ）
}

// AttendanceDraft はコミット前の1回の認識結果です。
// RecognizedStudents は StudentID で一意です。
type AttendanceDraft struct {
	ID                 string
	TenantID           string
	RecognizedStudents []RecognizedStudent
	VisitorCount       int
	ExperimentalCount  int
	Evidence           *EvidencePhoto
}

// AttendanceRecord はコミット済みの出席記録です。作成後は変更されません。
type AttendanceRecord struct {
	ID                string
	TenantID          string
	ClassID           *string
	DraftID           string
	Students          []RecognizedStudent
	VisitorCount      int
	ExperimentalCount int
	EvidencePhotoRef  string
	EvidenceDigest    string
	CapturedAt        *time.Time
	CreatedAt         time.Time
}

// Student は名簿上の生徒です（このフローでは読み取り専用）。
type Student struct {
	ID                string
	TenantID          string
	Name              string
	BeltRank          string
	PhotoURL          string
	ReferencePhotoURL string
}

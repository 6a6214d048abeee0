package entity

// RecognitionRequest は認識サービスへの問い合わせです。
type RecognitionRequest struct {
	TenantID string
	Image    []byte
	MIMEType string
}

// Match はレガシー形式の一致候補です。
type Match struct {
	StudentID   string
	StudentName string
	Confidence  float64
	Matched     bool
}

// PerFaceDetection は顔ごとの検出結果です。
type PerFaceDetection struct {
	FaceID         string
	BoundingBox    *BoundingBox
	SuggestedMatch *SuggestedMatch
}

// RecognitionResponse は認識サービスの生のレスポンスです。
// PerFaceDetections が nil の場合はレガシー形式として扱います。
type RecognitionResponse struct {
	Success           bool
	RecognizedAny     bool
	Matches           []Match
	DetectedFaceCount int
	PerFaceDetections []PerFaceDetection
}

// Step はワークフローの画面ステップです。
type Step string

const (
	StepSelect     Step = "select"
	StepCapture    Step = "capture"
	StepProcessing Step = "processing"
	StepResults    Step = "results"
	StepConfirm    Step = "confirm"
)

package entity

// Decision は検出された顔に対するオペレーターの分類です。
type Decision string

const (
	DecisionRecognized   Decision = "recognized"
	DecisionPending      Decision = "pending"
	DecisionVisitor      Decision = "visitor"
	DecisionExperimental Decision = "experimental"
	DecisionNewStudent   Decision = "new_student"
	DecisionProfessor    Decision = "professor"
	DecisionIgnore       Decision = "ignore"
)

// ParseDecision は文字列を Decision に変換します。未知の値は false を返します。
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionRecognized, DecisionPending, DecisionVisitor, DecisionExperimental,
		DecisionNewStudent, DecisionProfessor, DecisionIgnore:
		return d, true
	}
	return "", false
}

// IsTerminal は確定（コミット）可能な分類かどうかを返します。
func (d Decision) IsTerminal() bool {
	switch d {
	case DecisionRecognized, DecisionVisitor, DecisionExperimental, DecisionIgnore:
		return true
	}
	return false
}

// IsOperatorAssignable はオペレーターが手動で設定できる分類かどうかを返します。
// recognized はサービスの一致判定からのみ設定されます。
func (d Decision) IsOperatorAssignable() bool {
	switch d {
	case DecisionVisitor, DecisionExperimental, DecisionIgnore:
		return true
	}
	return false
}

// FaceReconciliationEntry は DetectedFace にオペレーターの判断と表示用データを付与したものです。
type FaceReconciliationEntry struct {
	Face      DetectedFace
	Decision  Decision
	Thumbnail []byte   // JPEG。切り出せない場合は nil
	Student   *Student // 一致した生徒の名簿情報（表示用）
}

// ReconciliationCounts は分類ごとの件数です。
type ReconciliationCounts struct {
	Recognized   int `json:"recognized"`
	Pending      int `json:"pending"`
	Visitors     int `json:"visitors"`
	Experimental int `json:"experimental"`
	Ignored      int `json:"ignored"`
}

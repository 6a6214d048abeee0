package usecase

import (
	"image"

	"github.com/google/uuid"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// Reconciliation は1回の認識結果に対する顔ごとの分類状態です。
// 一致した顔は recognized、それ以外は pending で初期化されます。
type Reconciliation struct {
	draftID string
	entries []entity.FaceReconciliationEntry
	index   map[string]int
}

// NewReconciliation は認識結果から分類状態を生成します。
// frame がある場合は顔ごとのサムネイルを切り出します。
func NewReconciliation(result *RecognitionResult, frame image.Image) *Reconciliation {
	r := &Reconciliation{
		draftID: uuid.NewString(),
		entries: make([]entity.FaceReconciliationEntry, 0, len(result.Faces)),
		index:   make(map[string]int, len(result.Faces)),
	}
	for _, f := range result.Faces {
		e := entity.FaceReconciliationEntry{
			Face:      f,
			Decision:  entity.DecisionPending,
			Thumbnail: CropThumbnail(frame, f.BoundingBox),
		}
		if f.IsMatched() {
			e.Decision = entity.DecisionRecognized
			if s, ok := result.Students[f.SuggestedMatch.StudentID]; ok {
				e.Student = &s
			}
		}
		r.index[f.FaceID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

// DraftID はこの認識結果から作られる下書きのIDです。コミットの冪等キーに使います。
func (r *Reconciliation) DraftID() string {
	return r.draftID
}

// Entries は分類状態のコピーを返します。
func (r *Reconciliation) Entries() []entity.FaceReconciliationEntry {
	out := make([]entity.FaceReconciliationEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Decide は pending だった顔に visitor / experimental / ignore を設定します。
// コミットまでは何度でも変更できます。recognized の顔は変更できません。
func (r *Reconciliation) Decide(faceID string, d entity.Decision) error {
	i, ok := r.index[faceID]
	if !ok {
		return ErrFaceNotFound
	}
	if r.entries[i].Decision == entity.DecisionRecognized {
		return ErrEntryLocked
	}
	if !d.IsOperatorAssignable() {
		return ErrDecisionNotAssignable
	}
	r.entries[i].Decision = d
	return nil
}

// CanFinalize は顔が1つ以上あり、すべてが確定済みの分類である場合に true を返します。
func (r *Reconciliation) CanFinalize() bool {
	if len(r.entries) == 0 {
		return false
	}
	for _, e := range r.entries {
		if !e.Decision.IsTerminal() {
			return false
		}
	}
	return true
}

// Counts は分類ごとの件数を返します。
func (r *Reconciliation) Counts() entity.ReconciliationCounts {
	var c entity.ReconciliationCounts
	for _, e := range r.entries {
		switch e.Decision {
		case entity.DecisionRecognized:
			c.Recognized++
		case entity.DecisionVisitor:
			c.Visitors++
		case entity.DecisionExperimental:
			c.Experimental++
		case entity.DecisionIgnore:
			c.Ignored++
		default:
			c.Pending++
		}
	}
	return c
}

// Draft は確定した分類から下書きを作ります。
// 同じ生徒が複数の顔に一致した場合は1件にまとめ、最大の信頼度を採用します。
func (r *Reconciliation) Draft(tenantID string, evidence *entity.EvidencePhoto) (*entity.AttendanceDraft, error) {
	if len(r.entries) == 0 {
		return nil, ErrNothingToConfirm
	}
	if !r.CanFinalize() {
		return nil, ErrUnresolvedFaces
	}

	draft := &entity.AttendanceDraft{
		ID:       r.draftID,
		TenantID: tenantID,
		Evidence: evidence,
	}
	seen := map[string]int{}
	for _, e := range r.entries {
		switch e.Decision {
		case entity.DecisionRecognized:
			m := e.Face.SuggestedMatch
			if i, ok := seen[m.StudentID]; ok {
				if m.Confidence > draft.RecognizedStudents[i].Confidence {
					draft.RecognizedStudents[i].Confidence = m.Confidence
				}
				continue
			}
			seen[m.StudentID] = len(draft.RecognizedStudents)
			draft.RecognizedStudents = append(draft.RecognizedStudents, entity.RecognizedStudent{
				StudentID:  m.StudentID,
				Confidence: m.Confidence,
			})
		case entity.DecisionVisitor:
			draft.VisitorCount++
		case entity.DecisionExperimental:
			draft.ExperimentalCount++
		}
	}
	return draft, nil
}

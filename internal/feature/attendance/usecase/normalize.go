package usecase

import (
	"fmt"
	"sort"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// ResponseShape は認識レスポンスの形式です。
type ResponseShape string

const (
	// ShapePerFace は顔ごとの検出結果（perFaceDetections）を含むレスポンスです。
	ShapePerFace ResponseShape = "per_face"
	// ShapeLegacy は一致候補リスト（matches）のみのレスポンスです。
	ShapeLegacy ResponseShape = "legacy"
)

// ClassifyResponse はレスポンスの形式を判定します。
// perFaceDetections が存在しない（nil）場合のみレガシー形式です。
func ClassifyResponse(resp *entity.RecognitionResponse) ResponseShape {
	if resp.PerFaceDetections != nil {
		return ShapePerFace
	}
	return ShapeLegacy
}

// NormalizeResponse は両方の形式を同じ DetectedFace のリストに変換します。
// 変換後の faceId はレスポンス内で一意です。
func NormalizeResponse(resp *entity.RecognitionResponse) (ResponseShape, []entity.DetectedFace) {
	shape := ClassifyResponse(resp)
	ids := newFaceIDs()

	if shape == ShapePerFace {
		faces := make([]entity.DetectedFace, 0, len(resp.PerFaceDetections))
		for i, d := range resp.PerFaceDetections {
			faces = append(faces, entity.DetectedFace{
				FaceID:         ids.assign(d.FaceID, i),
				BoundingBox:    normalizeBox(d.BoundingBox),
				SuggestedMatch: normalizeMatch(d.SuggestedMatch),
			})
		}
		return shape, faces
	}

	// 検出数が 0 なら matches があっても顔は作らない
	if resp.DetectedFaceCount <= 0 {
		return shape, []entity.DetectedFace{}
	}

	matches := legacyMatches(resp.Matches)
	if len(matches) > resp.DetectedFaceCount {
		matches = matches[:resp.DetectedFaceCount]
	}
	faces := make([]entity.DetectedFace, 0, resp.DetectedFaceCount)
	for _, m := range matches {
		faces = append(faces, entity.DetectedFace{
			FaceID:         ids.assign("", len(faces)),
			SuggestedMatch: m,
		})
	}
	// matches に含まれない検出顔は一致なしの顔として追加する
	for len(faces) < resp.DetectedFaceCount {
		faces = append(faces, entity.DetectedFace{FaceID: ids.assign("", len(faces))})
	}
	return shape, faces
}

// legacyMatches は生徒ごとに最も信頼度の高い候補を残し、一致済み・信頼度の高い順に並べます。
func legacyMatches(in []entity.Match) []*entity.SuggestedMatch {
	out := make([]*entity.SuggestedMatch, 0, len(in))
	byStudent := map[string]int{}
	for _, m := range in {
		sm := normalizeMatch(&entity.SuggestedMatch{
			StudentID:   m.StudentID,
			StudentName: m.StudentName,
			Confidence:  m.Confidence,
			Matched:     m.Matched,
		})
		if sm.StudentID != "" {
			if i, ok := byStudent[sm.StudentID]; ok {
				if better(sm, out[i]) {
					out[i] = sm
				}
				continue
			}
			byStudent[sm.StudentID] = len(out)
		}
		out = append(out, sm)
	}
	sort.SliceStable(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

func better(a, b *entity.SuggestedMatch) bool {
	if a.Matched != b.Matched {
		return a.Matched
	}
	return a.Confidence > b.Confidence
}

func normalizeBox(b *entity.BoundingBox) *entity.BoundingBox {
	if b == nil {
		return nil
	}
	c := b.Clamp()
	if c.Width <= 0 || c.Height <= 0 {
		return nil
	}
	return &c
}

func normalizeMatch(m *entity.SuggestedMatch) *entity.SuggestedMatch {
	if m == nil {
		return nil
	}
	out := *m
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 100 {
		out.Confidence = 100
	}
	if out.StudentID == "" {
		out.Matched = false
	}
	return &out
}

type faceIDs map[string]struct{}

func newFaceIDs() faceIDs { return faceIDs{} }

// assign は id が空または重複している場合に "face-<n>" を採番します。
func (s faceIDs) assign(id string, index int) string {
	if id != "" {
		if _, dup := s[id]; !dup {
			s[id] = struct{}{}
			return id
		}
	}
	for n := index + 1; ; n++ {
		candidate := fmt.Sprintf("face-%d", n)
		if _, dup := s[candidate]; !dup {
			s[candidate] = struct{}{}
			return candidate
		}
	}
}

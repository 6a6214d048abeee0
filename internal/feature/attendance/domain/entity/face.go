// Package entity はattendanceフィーチャーのドメインモデルを定義します。
package entity

import "image"

// BoundingBox は画像内の顔の位置を正規化座標（0.0 ~ 1.0）で表します。
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid は座標がすべて [0,1] に収まり、幅と高さが正であるかを返します。
func (b BoundingBox) Valid() bool {
	if b.Width <= 0 || b.Height <= 0 {
		return false
	}
	for _, v := range []float64{b.X, b.Y, b.Width, b.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return b.X+b.Width <= 1.0001 && b.Y+b.Height <= 1.0001
}

// Clamp は範囲外の値を [0,1] に丸めた矩形を返します。
func (b BoundingBox) Clamp() BoundingBox {
	c := BoundingBox{X: clamp01(b.X), Y: clamp01(b.Y), Width: b.Width, Height: b.Height}
	if c.X+c.Width > 1 {
		c.Width = 1 - c.X
	}
	if c.Y+c.Height > 1 {
		c.Height = 1 - c.Y
	}
	c.Width = clamp01(c.Width)
	c.Height = clamp01(c.Height)
	return c
}

// PixelRect は幅w・高さhの画像上のピクセル矩形に変換します。
func (b BoundingBox) PixelRect(w, h int) image.Rectangle {
	c := b.Clamp()
	x0 := int(c.X * float64(w))
	y0 := int(c.Y * float64(h))
	x1 := int((c.X + c.Width) * float64(w))
	y1 := int((c.Y + c.Height) * float64(h))
	return image.Rect(x0, y0, x1, y1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SuggestedMatch は認識サービスが返した最有力候補の生徒です。
// Matched はサービス側の閾値判定結果です（観測値: Confidence >= 70）。
type SuggestedMatch struct {
	StudentID   string  `json:"studentId"`
	StudentName string  `json:"studentName,omitempty"`
	Confidence  float64 `json:"confidence"` // 0 ~ 100
	Matched     bool    `json:"matched"`
}

// DetectedFace は1回の認識レスポンスで検出された顔を表します。
// BoundingBox はレガシー形式のレスポンスでは nil になります。
type DetectedFace struct {
	FaceID         string
	BoundingBox    *BoundingBox
	SuggestedMatch *SuggestedMatch
}

// IsMatched はサービスが一致と判定し、生徒IDが付与されている場合に true を返します。
func (f DetectedFace) IsMatched() bool {
	return f.SuggestedMatch != nil && f.SuggestedMatch.Matched && f.SuggestedMatch.StudentID != ""
}

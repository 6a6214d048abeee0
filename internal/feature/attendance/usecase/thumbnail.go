package usecase

import (
	"bytes"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"academy_backend/internal/feature/attendance/domain/entity"
)

const (
	// ThumbnailSize は顔サムネイルの最大辺（ピクセル）です。
	ThumbnailSize = 160
	// thumbnailMargin は顔の周囲に含める余白の割合です。
	thumbnailMargin = 0.15
)

// CropThumbnail は frame から box の範囲を切り出し、JPEG のサムネイルを返します。
// frame または box がない場合は nil を返します。
func CropThumbnail(frame image.Image, box *entity.BoundingBox) []byte {
	if frame == nil || box == nil {
		return nil
	}

	padded := entity.BoundingBox{
		X:      box.X - box.Width*thumbnailMargin,
		Y:      box.Y - box.Height*thumbnailMargin,
		Width:  box.Width * (1 + 2*thumbnailMargin),
		Height: box.Height * (1 + 2*thumbnailMargin),
	}
	b := frame.Bounds()
	rect := padded.PixelRect(b.Dx(), b.Dy()).Add(b.Min)
	if rect.Empty() {
		return nil
	}

	face := imaging.Crop(frame, rect)
	face = imaging.Fit(face, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, face, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		slog.Warn("サムネイルのエンコードに失敗", "error", err)
		return nil
	}
	return buf.Bytes()
}

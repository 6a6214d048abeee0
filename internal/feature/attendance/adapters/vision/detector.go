// Package vision はGoogle Cloud Vision APIを使用した顔検出クライアントを提供します。
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// maxFaces は1リクエストで検出する顔の上限です。
const maxFaces = 50

// FaceDetector はGoogle Cloud Vision APIを使用して顔を検出します。
type FaceDetector struct {
	client *gvision.ImageAnnotatorClient
}

// NewFaceDetector はADCを使用してFaceDetectorの新しいインスタンスを生成します。
func NewFaceDetector(ctx context.Context) (*FaceDetector, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &FaceDetector{client: client}, nil
}

// Close はVision APIクライアントを解放します。
func (v *FaceDetector) Close() error {
	return v.client.Close()
}

// DetectFaces は画像バイト列から顔を検出し、正規化座標の矩形を返します。
func (v *FaceDetector) DetectFaces(ctx context.Context, imageData []byte) ([]entity.BoundingBox, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_FACE_DETECTION, MaxResults: maxFaces},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}

	if len(resp.Responses) == 0 {
		return nil, nil
	}

	if resp.Responses[0].Error != nil {
		return nil, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	return normalizeFaces(resp.Responses[0].FaceAnnotations, cfg.Width, cfg.Height), nil
}

// normalizeFaces はピクセル座標の頂点を画像サイズで割って [0,1] の矩形に変換します。
// 頂点の欠けた注釈は読み飛ばします。
func normalizeFaces(faces []*visionpb.FaceAnnotation, width, height int) []entity.BoundingBox {
	if width <= 0 || height <= 0 {
		return nil
	}
	boxes := make([]entity.BoundingBox, 0, len(faces))
	for _, f := range faces {
		poly := f.GetBoundingPoly()
		if poly == nil || len(poly.GetVertices()) == 0 {
			continue
		}
		minX, minY := int32(width), int32(height)
		var maxX, maxY int32
		for _, vtx := range poly.GetVertices() {
			minX = min(minX, vtx.GetX())
			minY = min(minY, vtx.GetY())
			maxX = max(maxX, vtx.GetX())
			maxY = max(maxY, vtx.GetY())
		}
		box := entity.BoundingBox{
			X:      float64(minX) / float64(width),
			Y:      float64(minY) / float64(height),
			Width:  float64(maxX-minX) / float64(width),
			Height: float64(maxY-minY) / float64(height),
		}.Clamp()
		if !box.Valid() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes
}

package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

func TestNormalizeResponse_PerFace(t *testing.T) {
	t.Parallel()

	resp := &entity.RecognitionResponse{
		Success:           true,
		DetectedFaceCount: 3,
		PerFaceDetections: []entity.PerFaceDetection{
			{
				FaceID:      "a",
				BoundingBox: &entity.BoundingBox{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2},
				SuggestedMatch: &entity.SuggestedMatch{
					StudentID: "s1", StudentName: "Alice", Confidence: 120, Matched: true,
				},
			},
			{
				FaceID:      "a",
				BoundingBox: &entity.BoundingBox{X: 0.9, Y: -0.1, Width: 0.3, Height: 0.3},
			},
			{
				FaceID:         "",
				BoundingBox:    &entity.BoundingBox{X: 0.5, Y: 0.5, Width: 0, Height: 0.1},
				SuggestedMatch: &entity.SuggestedMatch{Confidence: 88, Matched: true},
			},
		},
	}

	shape, faces := usecase.NormalizeResponse(resp)

	assert.Equal(t, usecase.ShapePerFace, shape)
	require.Len(t, faces, 3)

	assert.Equal(t, "a", faces[0].FaceID)
	assert.Equal(t, float64(100), faces[0].SuggestedMatch.Confidence)
	assert.True(t, faces[0].IsMatched())

	// 重複した faceId は採番し直す
	assert.Equal(t, "face-2", faces[1].FaceID)
	require.NotNil(t, faces[1].BoundingBox)
	assert.InDelta(t, 0.9, faces[1].BoundingBox.X, 1e-9)
	assert.InDelta(t, 0.0, faces[1].BoundingBox.Y, 1e-9)
	assert.InDelta(t, 0.1, faces[1].BoundingBox.Width, 1e-9)
	assert.Nil(t, faces[1].SuggestedMatch)

	// 幅 0 の矩形は捨て、生徒IDのない一致は一致扱いにしない
	assert.Equal(t, "face-3", faces[2].FaceID)
	assert.Nil(t, faces[2].BoundingBox)
	assert.False(t, faces[2].IsMatched())
}

func TestNormalizeResponse_Legacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		resp          *entity.RecognitionResponse
		expectedFaces int
		expectedMatch int
	}{
		{
			name: "matches plus unlisted faces",
			resp: &entity.RecognitionResponse{
				Success:       true,
				RecognizedAny: true,
				Matches: []entity.Match{
					{StudentID: "s1", StudentName: "Alice", Confidence: 92, Matched: true},
					{StudentID: "s2", StudentName: "Bob", Confidence: 81, Matched: true},
				},
				DetectedFaceCount: 3,
			},
			expectedFaces: 3,
			expectedMatch: 2,
		},
		{
			name: "low confidence match stays unmatched",
			resp: &entity.RecognitionResponse{
				Success:           true,
				Matches:           []entity.Match{{StudentID: "s1", Confidence: 40, Matched: false}},
				DetectedFaceCount: 1,
			},
			expectedFaces: 1,
			expectedMatch: 0,
		},
		{
			name:          "zero detections",
			resp:          &entity.RecognitionResponse{Success: true},
			expectedFaces: 0,
			expectedMatch: 0,
		},
		{
			name: "matches without detections are dropped",
			resp: &entity.RecognitionResponse{
				Success:           true,
				Matches:           []entity.Match{{StudentID: "s1", Confidence: 90, Matched: true}},
				DetectedFaceCount: 0,
			},
			expectedFaces: 0,
			expectedMatch: 0,
		},
		{
			name: "more candidates than faces",
			resp: &entity.RecognitionResponse{
				Success: true,
				Matches: []entity.Match{
					{StudentID: "s1", Confidence: 55},
					{StudentID: "s2", Confidence: 40},
				},
				DetectedFaceCount: 1,
			},
			expectedFaces: 1,
			expectedMatch: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			shape, faces := usecase.NormalizeResponse(tt.resp)

			assert.Equal(t, usecase.ShapeLegacy, shape)
			assert.Len(t, faces, tt.expectedFaces)

			ids := map[string]struct{}{}
			matchedCount := 0
			for _, f := range faces {
				assert.Nil(t, f.BoundingBox)
				ids[f.FaceID] = struct{}{}
				if f.IsMatched() {
					matchedCount++
				}
			}
			assert.Len(t, ids, tt.expectedFaces, "face ids must be unique")
			assert.Equal(t, tt.expectedMatch, matchedCount)
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, usecase.ShapeLegacy, usecase.ClassifyResponse(&entity.RecognitionResponse{}))
	assert.Equal(t, usecase.ShapePerFace, usecase.ClassifyResponse(&entity.RecognitionResponse{
		PerFaceDetections: []entity.PerFaceDetection{},
	}))
}

func TestNormalizeResponse_LegacyCapKeepsBestCandidates(t *testing.T) {
	t.Parallel()

	resp := &entity.RecognitionResponse{
		Success: true,
		Matches: []entity.Match{
			{StudentID: "bob", StudentName: "Bob", Confidence: 60},
			{StudentID: "alice", StudentName: "Alice", Confidence: 75, Matched: true},
			{StudentID: "alice", StudentName: "Alice", Confidence: 93, Matched: true},
			{StudentID: "carol", StudentName: "Carol", Confidence: 85},
		},
		DetectedFaceCount: 2,
	}

	shape, faces := usecase.NormalizeResponse(resp)

	assert.Equal(t, usecase.ShapeLegacy, shape)
	require.Len(t, faces, 2)
	// 一致済みが先、同じ生徒は最高信頼度の1件のみ
	require.NotNil(t, faces[0].SuggestedMatch)
	assert.Equal(t, "alice", faces[0].SuggestedMatch.StudentID)
	assert.Equal(t, float64(93), faces[0].SuggestedMatch.Confidence)
	require.NotNil(t, faces[1].SuggestedMatch)
	assert.Equal(t, "carol", faces[1].SuggestedMatch.StudentID)
	assert.False(t, faces[1].IsMatched())
	assert.NotEqual(t, faces[0].FaceID, faces[1].FaceID)
}

package edgefunction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_backend/internal/feature/attendance/adapters/edgefunction/dto"
	"academy_backend/internal/feature/attendance/domain/entity"
	"academy_backend/internal/feature/attendance/usecase"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/", FunctionName: "face-recognition", AnonKey: "anon"}, server.Client())
}

func recognizeRequest() entity.RecognitionRequest {
	return entity.RecognitionRequest{TenantID: "tenant-a", Image: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("EDGE_FUNCTIONS_URL", "https://fn.example.com")
	t.Setenv("EDGE_FUNCTION_NAME", "")
	t.Setenv("EDGE_FUNCTIONS_ANON_KEY", "key")

	cfg := LoadConfig()

	assert.Equal(t, "https://fn.example.com", cfg.BaseURL)
	assert.Equal(t, "face-recognition", cfg.FunctionName)
	assert.Equal(t, "key", cfg.AnonKey)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, Config{}.Validate())
}

func TestClient_Recognize_PerFace(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/functions/v1/face-recognition", r.URL.Path)
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body dto.RecognizeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "recognize", body.Action)
		assert.Equal(t, "tenant-a", body.TenantID)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")), body.ImageBase64)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"recognizedAny": true,
			"matches": [{"studentId": "alice", "studentName": "Alice", "confidence": 92, "matched": true}],
			"detectedFaceCount": 2,
			"perFaceDetections": [
				{"faceId": "f1", "boundingBox": {"x": 0.1, "y": 0.2, "width": 0.3, "height": 0.4},
				 "suggestedMatch": {"studentId": "alice", "confidence": 92, "matched": true}},
				{"faceId": "f2", "boundingBox": {"x": 0.5, "y": 0.5, "width": 0.2, "height": 0.2}}
			]
		}`))
	})

	res, err := client.Recognize(context.Background(), recognizeRequest())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.DetectedFaceCount)
	require.Len(t, res.PerFaceDetections, 2)
	assert.Equal(t, "f1", res.PerFaceDetections[0].FaceID)
	assert.Equal(t, &entity.BoundingBox{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.4}, res.PerFaceDetections[0].BoundingBox)
	require.NotNil(t, res.PerFaceDetections[0].SuggestedMatch)
	assert.True(t, res.PerFaceDetections[0].SuggestedMatch.Matched)
	assert.Nil(t, res.PerFaceDetections[1].SuggestedMatch)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Alice", res.Matches[0].StudentName)
}

func TestClient_Recognize_LegacyShape(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "recognizedAny": false, "matches": [], "detectedFaceCount": 3}`))
	})

	res, err := client.Recognize(context.Background(), recognizeRequest())
	require.NoError(t, err)
	assert.Nil(t, res.PerFaceDetections, "absent perFaceDetections must stay nil")
	assert.Equal(t, 3, res.DetectedFaceCount)
}

func TestClient_Recognize_EmptyPerFaceList(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "matches": [], "detectedFaceCount": 0, "perFaceDetections": []}`))
	})

	res, err := client.Recognize(context.Background(), recognizeRequest())
	require.NoError(t, err)
	assert.NotNil(t, res.PerFaceDetections)
	assert.Empty(t, res.PerFaceDetections)
}

func TestClient_Recognize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
	}{
		{name: "429 is rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantKind: usecase.ErrRateLimited},
		{name: "rate limited code in body", status: http.StatusOK, body: `{"success":false,"code":"rate_limited"}`, wantKind: usecase.ErrRateLimited},
		{name: "402 is quota exhausted", status: http.StatusPaymentRequired, body: `{}`, wantKind: usecase.ErrQuotaExhausted},
		{name: "quota code in body", status: http.StatusForbidden, body: `{"success":false,"code":"quota_exhausted"}`, wantKind: usecase.ErrQuotaExhausted},
		{name: "500 is transport", status: http.StatusInternalServerError, body: `internal`, wantKind: usecase.ErrRecognitionTransport},
		{name: "success false is transport", status: http.StatusOK, body: `{"success":false,"error":"boom"}`, wantKind: usecase.ErrRecognitionTransport},
		{name: "malformed json is transport", status: http.StatusOK, body: `{not json`, wantKind: usecase.ErrRecognitionTransport},
		{name: "negative face count is transport", status: http.StatusOK, body: `{"success":true,"detectedFaceCount":-1}`, wantKind: usecase.ErrRecognitionTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Recognize(context.Background(), recognizeRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, usecase.ErrRecognitionService)
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestClient_Recognize_EmptyRoster(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"code":"empty_roster","error":"no faces registered"}`))
	})

	_, err := client.Recognize(context.Background(), recognizeRequest())
	assert.ErrorIs(t, err, usecase.ErrEmptyRoster)
	assert.NotErrorIs(t, err, usecase.ErrRecognitionService)
}

func TestClient_Recognize_ContextCanceled(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Recognize(ctx, recognizeRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, usecase.ErrRecognitionService)
}

func TestClient_Create(t *testing.T) {
	t.Parallel()

	classID := "class-1"
	taken := time.Date(2026, 3, 2, 19, 30, 0, 0, time.UTC)
	newRecord := func() *entity.AttendanceRecord {
		return &entity.AttendanceRecord{
			TenantID:          "tenant-a",
			ClassID:           &classID,
			DraftID:           "draft-1",
			Students:          []entity.RecognizedStudent{{StudentID: "alice", Confidence: 92}},
			VisitorCount:      1,
			ExperimentalCount: 2,
			EvidencePhotoRef:  "tenant-a/photo.jpg",
			CapturedAt:        &taken,
		}
	}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "draft-1", r.Header.Get("Idempotency-Key"))

			var body dto.RecordAttendanceRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "record_attendance", body.Action)
			assert.Equal(t, "class-1", *body.ClassID)
			assert.Equal(t, []dto.RecognizedStudent{{StudentID: "alice", Confidence: 92}}, body.RecognizedStudents)
			assert.Equal(t, 1, body.VisitorCount)
			assert.Equal(t, 2, body.ExperimentalCount)
			assert.Equal(t, "2026-03-02T19:30:00Z", body.CapturedAt)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"attendanceId":"att-9"}`))
		})
		fixed := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
		client.now = func() time.Time { return fixed }

		rec := newRecord()
		require.NoError(t, client.Create(context.Background(), rec))
		assert.Equal(t, "att-9", rec.ID)
		assert.Equal(t, fixed, rec.CreatedAt)
	})

	t.Run("conflict is already committed", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})

		err := client.Create(context.Background(), newRecord())
		assert.ErrorIs(t, err, usecase.ErrAlreadyCommitted)
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"db down"}`))
		})

		rec := newRecord()
		err := client.Create(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Empty(t, rec.ID)
	})

	t.Run("missing attendance id", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})

		err := client.Create(context.Background(), newRecord())
		assert.Error(t, err)
	})
}

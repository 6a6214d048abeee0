package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"academy_backend/internal/feature/attendance/adapters/edgefunction"
	"academy_backend/internal/feature/attendance/adapters/gemini"
	"academy_backend/internal/feature/attendance/adapters/vision"
	"academy_backend/internal/feature/attendance/usecase"
	infrahttp "academy_backend/internal/platform/http"
	"academy_backend/internal/shared/ratelimiter"
)

// referenceFetchTimeout は参照写真のダウンロードに使うHTTPクライアントのタイムアウトです。
const referenceFetchTimeout = 15 * time.Second

// NewEdgeClient creates an edge function client configured from the environment.
func NewEdgeClient() (*edgefunction.Client, error) {
	cfg := edgefunction.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return edgefunction.NewClient(cfg, infrahttp.NewHTTPClient(cfg.Timeout)), nil
}

// NewRecognitionService は backend に応じた RecognitionService を生成します。
// 返される close 関数で外部クライアントを解放します。
func NewRecognitionService(ctx context.Context, backend string, roster gemini.RosterSource) (usecase.RecognitionService, func(), error) {
	switch backend {
	case BackendEdge:
		client, err := NewEdgeClient()
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case BackendGemini:
		cfg := gemini.LoadConfig()
		genaiClient, err := gemini.NewGenAIClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		detector, err := vision.NewFaceDetector(ctx)
		if err != nil {
			return nil, nil, err
		}
		limiter := ratelimiter.NewRateLimiter(cfg.RequestsPerMinute, time.Minute)
		recognizer := gemini.NewFaceRecognizer(
			genaiClient.Models,
			cfg.Model,
			detector,
			roster,
			infrahttp.NewHTTPClient(referenceFetchTimeout),
			limiter,
		)
		closeFn := func() {
			if err := detector.Close(); err != nil {
				slog.Warn("failed to close vision client", "error", err)
			}
		}
		return recognizer, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown recognition backend %q", backend)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"academy_backend/internal/app/di"
	"academy_backend/internal/feature/attendance/usecase"
	"academy_backend/internal/kiosk"
	infradb "academy_backend/internal/platform/db"
	"academy_backend/internal/platform/storage"
)

// runWorkflow は依存関係を組み立てて1回分の出席登録を実行します。
func runWorkflow(cameras usecase.CameraProvider, acquire func(r *kiosk.Runner) kiosk.Acquire) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.New("--tenant (or KIOSK_TENANT_ID) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := di.LoadConfig()
	if err != nil {
		return err
	}

	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() {
			if err := sqlDB.Close(); err != nil {
				slog.Warn("failed to close database", "error", err)
			}
		}()
	}

	// 端末は1台なのでRedisは使わない
	roster := di.NewRosterRepository(nil, db, cfg.RosterCacheTTL)
	repo, err := di.NewAttendanceRepository(cfg.AttendanceBackend, db)
	if err != nil {
		return err
	}
	evidence, err := storage.NewLocalStore(cfg.EvidencePath)
	if err != nil {
		return err
	}
	service, closeService, err := di.NewRecognitionService(ctx, cfg.RecognitionBackend, roster)
	if err != nil {
		return err
	}
	defer closeService()

	w := usecase.NewWorkflow(uuid.NewString(), tenantID, usecase.WorkflowDeps{
		Cameras:    cameras,
		Recognizer: usecase.NewRecognitionClient(service, roster, cfg.MinConfidence),
		Committer:  usecase.NewAttendanceCommitter(repo, evidence, di.NewCommitGuard(nil)),
	})
	defer w.Close()

	if c := strings.TrimSpace(classID); c != "" {
		if err := w.SetClass(&c); err != nil {
			return err
		}
	}

	runner := kiosk.NewRunner(os.Stdin, os.Stdout)
	_, err = runner.Run(ctx, w, acquire(runner))
	return err
}

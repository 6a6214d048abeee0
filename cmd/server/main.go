package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"academy_backend/internal/app/di"
	"academy_backend/internal/app/router"
	"academy_backend/internal/feature/attendance/adapters/streamcamera"
	"academy_backend/internal/feature/attendance/transport/handler"
	"academy_backend/internal/feature/attendance/transport/messages"
	"academy_backend/internal/feature/attendance/usecase"
	infradb "academy_backend/internal/platform/db"
	healthhandler "academy_backend/internal/platform/http/handler"
	jwtmw "academy_backend/internal/platform/jwt"
	infraredis "academy_backend/internal/platform/redis"
	"academy_backend/internal/platform/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env はローカル開発用。本番では環境変数を直接設定する
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := di.LoadConfig()
	if err != nil {
		fatal("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.OpenDB(infradb.LoadConfigFromEnv())
	if err != nil {
		fatal("failed to open database", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		fatal("failed to get sql.DB", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Redis
	var rdb *redisv9.Client
	if redisCfg := infraredis.LoadConfig(); !redisCfg.Enabled() {
		slog.Warn("REDIS_HOST is not set. Running without cache.")
	} else if tmp, err := infraredis.NewRedisClient(ctx, redisCfg); err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// Repository
	// 名簿はRedisキャッシュでラップ
	roster := di.NewRosterRepository(rdb, db, cfg.RosterCacheTTL)
	attendanceRepo, err := di.NewAttendanceRepository(cfg.AttendanceBackend, db)
	if err != nil {
		fatal("failed to create attendance repository", err)
	}
	evidence, err := storage.NewLocalStore(cfg.EvidencePath)
	if err != nil {
		fatal("failed to create evidence store", err)
	}

	// 外部サービス
	recognitionService, closeRecognition, err := di.NewRecognitionService(ctx, cfg.RecognitionBackend, roster)
	if err != nil {
		fatal("failed to create recognition service", err)
	}
	defer closeRecognition()

	// Usecase
	hub := streamcamera.NewHub(cfg.CheckOrigin())
	registry := usecase.NewSessionRegistry(usecase.WorkflowDeps{
		Cameras:    streamcamera.NewProvider(hub, streamcamera.DefaultOpenTimeout),
		Recognizer: usecase.NewRecognitionClient(recognitionService, roster, cfg.MinConfidence),
		Committer:  usecase.NewAttendanceCommitter(attendanceRepo, evidence, di.NewCommitGuard(rdb)),
	}, cfg.SessionIdleTimeout)
	go registry.RunSweeper(ctx, time.Minute)

	// Handler
	msgs, err := messages.Load(cfg.MessagesLocale)
	if err != nil {
		fatal("failed to load operator messages", err)
	}
	attendanceH := handler.NewAttendanceHandler(registry, hub, msgs)

	checks := []healthhandler.Check{{Name: "db", Ping: sqlDB.PingContext}}
	if rdb != nil {
		checks = append(checks, healthhandler.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	// ルータ生成
	r := router.NewRouter(attendanceH, healthhandler.Readiness(checks...), cfg.AllowedOrigins)

	// JWT_SECRETチェック（開発中の注意喚起）
	if os.Getenv(jwtmw.EnvKeyJWTSecret) == "" {
		slog.Warn("JWT_SECRET is not set. Set a strong secret in production.")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"recognition_backend", cfg.RecognitionBackend,
			"attendance_backend", cfg.AttendanceBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	// 開いているカメラをすべて解放する
	registry.CloseAll()
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

// Package di provides dependency injection factories for creating application components.
package di

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"academy_backend/internal/feature/attendance/usecase"
)

// Recognition and attendance backends.
const (
	// BackendEdge はエッジ関数（HTTP）を使います。認識と出席記録の両方で選択できます。
	BackendEdge = "edge"
	// BackendGemini はCloud Visionで顔を検出し、Geminiで名簿と照合します。
	BackendGemini = "gemini"
	// BackendDB は出席記録をこのサービスのDBに直接書き込みます。
	BackendDB = "db"
)

const (
	defaultEvidencePath   = "./data/evidence"
	defaultRosterCacheTTL = time.Minute
)

// Config はアプリケーション全体の構成です。
type Config struct {
	RecognitionBackend string
	AttendanceBackend  string
	// MinConfidence が 0 より大きい場合、サービスの一致判定をローカルで再確認します（格下げのみ）。
	MinConfidence      float64
	EvidencePath       string
	SessionIdleTimeout time.Duration
	RosterCacheTTL     time.Duration
	MessagesLocale     string
	Port               string
	AllowedOrigins     []string
}

// LoadConfig は環境変数から Config を読み込みます。
func LoadConfig() (Config, error) {
	cfg := Config{
		RecognitionBackend: strings.ToLower(getenv("RECOGNITION_BACKEND", BackendEdge)),
		AttendanceBackend:  strings.ToLower(getenv("ATTENDANCE_BACKEND", BackendDB)),
		EvidencePath:       getenv("EVIDENCE_STORAGE_PATH", defaultEvidencePath),
		SessionIdleTimeout: usecase.DefaultSessionIdleTimeout,
		RosterCacheTTL:     defaultRosterCacheTTL,
		MessagesLocale:     os.Getenv("MESSAGES_LOCALE"),
		Port:               getenv("PORT", "8080"),
		AllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	switch cfg.RecognitionBackend {
	case BackendEdge, BackendGemini:
	default:
		return Config{}, fmt.Errorf("unknown RECOGNITION_BACKEND %q", cfg.RecognitionBackend)
	}
	switch cfg.AttendanceBackend {
	case BackendDB, BackendEdge:
	default:
		return Config{}, fmt.Errorf("unknown ATTENDANCE_BACKEND %q", cfg.AttendanceBackend)
	}

	if v := os.Getenv("RECOGNITION_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			return Config{}, fmt.Errorf("invalid RECOGNITION_MIN_CONFIDENCE %q", v)
		}
		cfg.MinConfidence = f
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT %q", v)
		}
		cfg.SessionIdleTimeout = d
	}
	if v := os.Getenv("ROSTER_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid ROSTER_CACHE_TTL %q", v)
		}
		cfg.RosterCacheTTL = d
	}
	return cfg, nil
}

// CheckOrigin はWebSocketのアップグレード時に Origin ヘッダーを検証します。
// AllowedOrigins が空の場合は nil を返し、全てのオリジンを許可します。
func (c Config) CheckOrigin() func(r *http.Request) bool {
	if len(c.AllowedOrigins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// ブラウザ以外（キオスクなど）
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

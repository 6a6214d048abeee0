// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health は /healthz のライブネスチェックです。依存先は確認しません。
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	case http.MethodOptions:
		c.Status(http.StatusNoContent)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// readinessTimeout は各依存先のチェックに許す最大時間です。
const readinessTimeout = 2 * time.Second

// Check は /readyz で確認する依存先です。
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Readiness は依存先（DB、設定されていればRedis）への疎通を確認する /readyz ハンドラーを返します。
// いずれかが失敗した場合は 503 と失敗した依存先を返します。
func Readiness(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		failed := gin.H{}
		for _, chk := range checks {
			ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
			err := chk.Ping(ctx)
			cancel()
			if err != nil {
				slog.Warn("readiness check failed", "check", chk.Name, "error", err)
				failed[chk.Name] = err.Error()
			}
		}

		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"academy_backend/internal/feature/attendance/transport/handler"
	jwtmw "academy_backend/internal/platform/jwt"
	healthhandler "academy_backend/internal/platform/http/handler"
)

// maxMultipartMemory はアップロード写真をメモリに保持する上限です。超えた分は一時ファイルになります。
const maxMultipartMemory = 16 << 20

func NewRouter(attendance *handler.AttendanceHandler, ready gin.HandlerFunc, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = maxMultipartMemory

	// ブラウザの受付画面から呼ばれるため、許可されたオリジンのみCORSを有効にする
	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 認証不要
	// 導通確認用
	r.GET("/healthz", healthhandler.Health)
	r.HEAD("/healthz", healthhandler.Health)
	// DB / Redis の疎通確認
	r.GET("/readyz", ready)

	// 認証必須のルート
	// → テナントIDを含む JWT が必要になる
	v1 := r.Group("/v1/attendance")
	v1.Use(jwtmw.AuthRequired())
	attendance.Routes(v1)

	return r
}

package jwtmw

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequired returns a Gin middleware function that validates JWT tokens
// and puts the operator and tenant from the claims into the context.
// Tokens without a tenant_id claim are rejected: every attendance route is tenant scoped.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get bearer token (or access_token query on WebSocket upgrades)
		tokenStr, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		// 2. Load secret key from environment variable
		secret := os.Getenv(EnvKeyJWTSecret)
		if secret == "" {
			// Server misconfiguration (JWT_SECRET not set)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
			return
		}

		// 3. Parse and verify JWT signature (only HMAC allowed)
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// 4. Extract claims (payload)
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		tenantID, _ := claims[claimTenantID].(string)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token has no tenant"})
			return
		}
		c.Set(ContextTenantID, tenantID)
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Set(ContextOperatorID, sub)
		}

		// 5. Pass control to the next handler
		c.Next()
	}
}

// TenantID はAuthRequiredが設定したテナントIDを返します。
func TenantID(c *gin.Context) string {
	return c.GetString(ContextTenantID)
}

// OperatorID はAuthRequiredが設定したオペレーターIDを返します。
func OperatorID(c *gin.Context) string {
	return c.GetString(ContextOperatorID)
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), true
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		if tok := c.Query(queryAccessToken); tok != "" {
			return tok, true
		}
	}
	return "", false
}

package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"ugmart/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const identityKey = "identity"

// Identity 会话令牌解析出的调用方身份。核心流程只消费这两个字段。
type Identity struct {
	UserID uint
	Role   string
}

// Auth 校验 Authorization: Bearer 会话令牌并注入身份。
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "no auth token, access denied",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "invalid authorization header format",
			})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "token verification failed, access denied",
			})
			return
		}

		// jwt.MapClaims 的数字统一是 float64
		idFloat, ok := claims["id"].(float64)
		if !ok || idFloat <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "user id not found in token",
			})
			return
		}
		role, _ := claims["role"].(string)

		c.Set(identityKey, Identity{UserID: uint(idFloat), Role: role})
		c.Next()
	}
}

// RequireAdmin 仅放行 SUPER_ADMIN，需在 Auth 之后挂载。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false, "message": "user not authenticated",
			})
			return
		}
		if id.Role != model.RoleSuperAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false, "message": "admin access required",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity 取出 Auth 注入的身份。
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

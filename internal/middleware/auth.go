package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenHeader 除 Authorization 外也接受的令牌头
const TokenHeader = "X-API-Token"

// AuthMiddleware 认证中间件
// 配置了 token 时要求请求携带 Bearer token 或 X-API-Token，未配置时放行
func AuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(TokenHeader)
		if provided == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "未提供认证令牌",
				})
				return
			}

			provided = strings.TrimPrefix(authHeader, "Bearer ")
			if provided == "" || provided == authHeader {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "认证令牌格式错误",
				})
				return
			}
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "无效的认证令牌",
			})
			return
		}

		c.Next()
	}
}

package web

import (
	"net/http"

	"noir-server-go/src/core/auth"

	"github.com/gin-gonic/gin"
)

// CORS 为所有响应添加跨域头，预检请求直接返回
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireAuth 校验 Bearer 令牌，at 为 nil 时不做认证
func RequireAuth(at *auth.AuthToken) gin.HandlerFunc {
	return func(c *gin.Context) {
		if at == nil {
			c.Next()
			return
		}
		if err := at.Authorize(c.GetHeader("Authorization"), ""); err != nil {
			respondError(c, http.StatusUnauthorized, "无效的认证token或token已过期")
			return
		}
		c.Next()
	}
}

// authorizeSession 校验令牌是否属于该会话，失败时已写入响应
func authorizeSession(c *gin.Context, at *auth.AuthToken, sessionID string) bool {
	if at == nil {
		return true
	}
	if err := at.Authorize(c.GetHeader("Authorization"), sessionID); err != nil {
		respondError(c, http.StatusUnauthorized, "令牌与会话不匹配")
		return false
	}
	return true
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ChatResponse{Success: false, Message: message})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OwnerIDKey 请求上下文中的用户 ID 键
const OwnerIDKey = "owner_id"

// OwnerIDHeader 携带用户身份的请求头
const OwnerIDHeader = "X-User-ID"

// RequireOwner 要求请求携带用户身份的中间件
// 所有文档与会话数据按用户隔离，缺失身份的请求直接拒绝。
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.GetHeader(OwnerIDHeader)
		if ownerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + OwnerIDHeader + " header",
			})
			return
		}
		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// OwnerID 从请求上下文取用户 ID
func OwnerID(c *gin.Context) string {
	return c.GetString(OwnerIDKey)
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthMiddleware 用 HTTP Basic Auth 保护管理接口，密码以 bcrypt 哈希形式配置。
// 未配置管理员账号时所有请求都被拒绝。
func AdminAuthMiddleware(username, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, ok := c.Request.BasicAuth()
		if !ok || username == "" || passwordHash == "" {
			c.Header("WWW-Authenticate", `Basic realm="chat-widget admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "需要管理员认证", "data": nil})
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil || !userMatch {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "用户名或密码错误", "data": nil})
			return
		}

		c.Set("admin", user)
		c.Next()
	}
}

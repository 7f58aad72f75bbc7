// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"chat-widget-go/pkg/log"
	"chat-widget-go/pkg/token"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionIDKey 是会话 ID 在 gin.Context 中的键。
const SessionIDKey = "sessionID"

// SessionMiddleware 从 Cookie 中读取会话句柄。句柄缺失、无效或过期时签发新的会话；
// 剩余有效期不足一半时续期。会话 ID 存入上下文，供后续处理函数使用。
func SessionMiddleware(manager *token.SessionManager, cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionID string
		renew := true

		if raw, err := c.Cookie(cookieName); err == nil && raw != "" {
			claims, err := manager.Verify(raw)
			if err == nil {
				sessionID = claims.SessionID()
				renew = claims.ExpiresAt != nil && time.Until(claims.ExpiresAt.Time) < manager.TTL()/2
			} else {
				log.Warnf("会话句柄无效，签发新会话: %v", err)
			}
		}

		var signed string
		var err error
		switch {
		case sessionID == "":
			sessionID, signed, err = manager.Issue()
		case renew:
			signed, err = manager.Sign(sessionID)
		}
		if err != nil {
			log.Error("签发会话句柄失败", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法创建会话", "data": nil})
			return
		}
		if signed != "" {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, signed, int(manager.TTL().Seconds()), "/", "", secure, true)
		}

		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// SessionID 返回 SessionMiddleware 存入的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// Package token 负责签发和校验组件会话句柄（存放在 Cookie 中的 JWT）。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionManager 负责会话句柄的生成和验证。
type SessionManager struct {
	secretKey []byte
	ttl       time.Duration
}

// SessionClaims 是会话句柄中携带的数据。会话 ID 放在 Subject 中。
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionID 返回句柄对应的会话 ID。
func (c *SessionClaims) SessionID() string {
	return c.Subject
}

// NewSessionManager 创建 SessionManager。expireHours 为句柄有效期（小时）。
func NewSessionManager(secret string, expireHours int) *SessionManager {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &SessionManager{
		secretKey: []byte(secret),
		ttl:       time.Duration(expireHours) * time.Hour,
	}
}

// TTL 返回句柄有效期，用于设置 Cookie 的 Max-Age。
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue 为一个新会话签发句柄，返回会话 ID 和签名后的 token。
func (m *SessionManager) Issue() (string, string, error) {
	sessionID := uuid.NewString()
	signed, err := m.Sign(sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, signed, nil
}

// Sign 为已有的会话 ID 重新签发句柄（用于续期）。
func (m *SessionManager) Sign(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify 验证句柄，返回其中的 claims。签名不匹配、过期或缺少会话 ID 时返回错误。
func (m *SessionManager) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

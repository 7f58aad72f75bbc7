// Package repository 提供了数据访问层的实现。
package repository

import (
	"chat-widget-go/internal/transcript"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound 表示 Redis 中没有该会话（首次访问或已过期）。
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository 定义了浏览器会话状态的存取接口。
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*transcript.Session, error)
	Save(ctx context.Context, sess *transcript.Session) error
	// AcquireInFlight 为会话设置发送中标记，已有标记时返回 false。
	AcquireInFlight(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	ReleaseInFlight(ctx context.Context, sessionID string) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。每次保存都会刷新 ttl。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("widget:session:%s", sessionID)
}

func inFlightKey(sessionID string) string {
	return fmt.Sprintf("widget:session:%s:inflight", sessionID)
}

// Get 从 Redis 读取会话。
func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*transcript.Session, error) {
	data, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var sess transcript.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Transcript == nil {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

// Save 把会话整体写回 Redis。
func (r *redisSessionRepository) Save(ctx context.Context, sess *transcript.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(sess.SessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) AcquireInFlight(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, inFlightKey(sessionID), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire in-flight flag: %w", err)
	}
	return ok, nil
}

func (r *redisSessionRepository) ReleaseInFlight(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, inFlightKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight flag: %w", err)
	}
	return nil
}

package service

import (
	"chat-widget-go/internal/model"
	"chat-widget-go/pkg/log"
	"sync"
)

// EventType 是推送给浏览器的会话变化类型。
type EventType string

const (
	EventAppend  EventType = "append"  // 追加了一条消息
	EventReset   EventType = "reset"   // 对话被清空或新建，需要整体重建
	EventLoading EventType = "loading" // 等待状态变化
)

// Event 是一次会话变化。Message 只在 append 时存在，渲染由各连接按自己的列偏好完成。
type Event struct {
	Type         EventType      `json:"type"`
	TranscriptID string         `json:"transcriptId"`
	Index        int            `json:"index,omitempty"`
	Message      *model.Message `json:"message,omitempty"`
	Loading      bool           `json:"loading,omitempty"`
}

// Subscriber 接收会话事件，一般是一条 websocket 连接。
type Subscriber interface {
	Send(ev Event) error
}

// Broadcaster 把会话事件分发给该会话的所有订阅者。
type Broadcaster interface {
	Broadcast(sessionID string, ev Event)
}

// Hub 按会话标识管理订阅者。同一个会话可以在多个标签页中打开。
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}
}

// NewHub 创建一个空的 Hub。
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[Subscriber]struct{})}
}

// Subscribe 注册订阅者，返回取消订阅的函数。
func (h *Hub) Subscribe(sessionID string, sub Subscriber) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[Subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[sessionID], sub)
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
	}
}

// Broadcast 发送事件。发送失败的订阅者只记录日志，由连接自己的读循环负责清理。
func (h *Hub) Broadcast(sessionID string, ev Event) {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs[sessionID]))
	for sub := range h.subs[sessionID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.Send(ev); err != nil {
			log.Warnf("推送会话事件失败: session=%s, type=%s, err=%v", sessionID, ev.Type, err)
		}
	}
}

// Subscribers 返回会话当前的订阅者数量。
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

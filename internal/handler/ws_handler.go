package handler

import (
	"chat-widget-go/internal/middleware"
	"chat-widget-go/internal/render"
	"chat-widget-go/internal/service"
	"chat-widget-go/pkg/log"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler 负责把会话变化通过 WebSocket 推送给页面。
type WSHandler struct {
	chatService service.ChatService
	renderer    *render.Renderer
	hub         *service.Hub
	upgrader    websocket.Upgrader
}

// NewWSHandler 创建一个新的 WSHandler。allowedOrigins 为空时只接受同源连接。
func NewWSHandler(chatService service.ChatService, renderer *render.Renderer, hub *service.Hub, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		chatService: chatService,
		renderer:    renderer,
		hub:         hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// wsPayload 是发送给页面的 JSON 消息，HTML 已按该连接的列偏好渲染。
type wsPayload struct {
	Type         service.EventType `json:"type"`
	TranscriptID string            `json:"transcriptId"`
	MessageID    string            `json:"messageId,omitempty"`
	HTML         string            `json:"html,omitempty"`
	Loading      bool              `json:"loading,omitempty"`
}

// wsSubscriber 把 Hub 的事件渲染后写入一条连接。gorilla/websocket 不允许并发写，写操作用锁串行。
type wsSubscriber struct {
	conn      *websocket.Conn
	mu        sync.Mutex
	handler   *WSHandler
	sessionID string
	columns   []string
}

func (s *wsSubscriber) Send(ev service.Event) error {
	payload := wsPayload{Type: ev.Type, TranscriptID: ev.TranscriptID, Loading: ev.Loading}
	var err error
	switch ev.Type {
	case service.EventAppend:
		if ev.Message == nil {
			return nil
		}
		payload.MessageID = ev.Message.ID
		payload.HTML, err = s.handler.renderer.RenderMessage(*ev.Message, ev.Index, s.columns)
	case service.EventLoading:
		if ev.Loading {
			payload.HTML, err = s.handler.renderer.RenderLoading()
		}
	case service.EventReset:
		sess, serr := s.handler.chatService.Session(context.Background(), s.sessionID)
		if serr != nil {
			return serr
		}
		payload.HTML, err = s.handler.renderer.RenderTranscript(sess, s.columns)
	}
	if err != nil {
		return err
	}
	return s.write(func() error { return s.conn.WriteJSON(payload) })
}

func (s *wsSubscriber) write(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn()
}

// Handle 处理一个传入的 WebSocket 连接。连接只用于服务端推送，页面发来的消息被忽略。
func (h *WSHandler) Handle(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	columns := columnsOf(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{conn: conn, handler: h, sessionID: sessionID, columns: columns}
	unsubscribe := h.hub.Subscribe(sessionID, sub)
	defer unsubscribe()
	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sub.write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}
	}
	log.Infof("WebSocket 连接已关闭，会话: %s", sessionID)
}

package transcript

import (
	"time"

	"chat-widget-go/internal/model"
)

// Session 是一个浏览器会话的全部可变状态，由会话标识显式索引。
type Session struct {
	SessionID       string             `json:"sessionId"`
	Transcript      *Store             `json:"transcript"`
	CurrentCategory string             `json:"currentCategory,omitempty"`
	Attachments     []model.Attachment `json:"attachments,omitempty"`
	// Loading 为 true 时渲染器在末尾绘制占位消息，占位消息不进入对话记录
	Loading bool `json:"loading,omitempty"`
}

// NewSession 创建一个只含欢迎消息的新会话。
func NewSession(sessionID, welcome string, now time.Time) *Session {
	return &Session{
		SessionID:  sessionID,
		Transcript: New(welcome, now),
	}
}

// ClearAttachments 清空当前附件，返回被清掉的附件以便删除对象存储中的文件。
func (s *Session) ClearAttachments() []model.Attachment {
	dropped := s.Attachments
	s.Attachments = nil
	return dropped
}

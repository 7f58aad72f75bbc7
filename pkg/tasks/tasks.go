// Package tasks 定义了发送到 Kafka 的对话事件。
package tasks

import "time"

// EventKind 是对话事件的类型。
type EventKind string

const (
	EventExchange EventKind = "exchange" // 一问一答
	EventCategory EventKind = "category" // 切换分类
	EventReset    EventKind = "reset"    // 清空或新建对话
)

// TranscriptEvent 是一条需要归档的对话事件。
type TranscriptEvent struct {
	EventID      string    `json:"event_id"`
	Kind         EventKind `json:"kind"`
	SessionID    string    `json:"session_id"`
	TranscriptID string    `json:"transcript_id"`
	Category     string    `json:"category,omitempty"`
	Question     string    `json:"question,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	AnswerKind   string    `json:"answer_kind,omitempty"`
	Sources      []string  `json:"sources,omitempty"`
	Attachments  []string  `json:"attachments,omitempty"`
	Failed       bool      `json:"failed,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

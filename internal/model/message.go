// Package model 包含了聊天组件的数据模型定义。
package model

import (
	"strings"
	"time"
)

// Sender 标识消息的发送方，创建后不可修改。
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// BodyKind 是消息正文的展示类型，在入库时一次性确定。
type BodyKind string

const (
	BodyText  BodyKind = "text"  // 纯文本 / markdown-lite
	BodyCode  BodyKind = "code"  // {text, code, language} 结构化代码
	BodyTable BodyKind = "table" // 表格（可附带图表）
)

// Body 是消息正文的 tagged union，Kind 决定哪些字段有效。
type Body struct {
	Kind     BodyKind        `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Code     string          `json:"code,omitempty"`
	Language string          `json:"language,omitempty"`
	Table    *TabularPayload `json:"table,omitempty"`
}

// TextBody 构造纯文本正文。
func TextBody(text string) Body {
	return Body{Kind: BodyText, Text: text}
}

// SourcesKind 是消息来源区块的类型。
type SourcesKind string

const (
	SourcesCitations   SourcesKind = "citations"
	SourcesSuggestions SourcesKind = "suggestions"
	SourcesFreeText    SourcesKind = "freetext"
)

// Citation 是一条文档引用。Page 为空表示未知页码。
type Citation struct {
	Category string `json:"category,omitempty"`
	Document string `json:"document,omitempty"`
	Page     string `json:"page,omitempty"`
}

// Label 返回 "category - document (Page n)" 形式的展示文本。
func (c Citation) Label() string {
	label := c.Category + " - " + c.Document
	if c.Page != "" {
		label += " (Page " + c.Page + ")"
	}
	return strings.TrimSpace(label)
}

// Suggestion 是一条建议问题。Tip 为 true 时仅作提示展示，不可点击。
type Suggestion struct {
	Text string `json:"text"`
	Tip  bool   `json:"tip,omitempty"`
}

// Sources 是来源区块的 tagged union。
type Sources struct {
	Kind        SourcesKind  `json:"kind"`
	Citations   []Citation   `json:"citations,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Text        string       `json:"text,omitempty"`
}

// Attachment 描述一个随消息发送的附件，文件本体保存在对象存储中。
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	ObjectName  string `json:"objectName"`
}

// Icon 根据 MIME 类型返回附件徽标使用的图标类名。
func (a Attachment) Icon() string {
	switch {
	case strings.Contains(a.ContentType, "pdf"):
		return "fa-file-pdf"
	case strings.Contains(a.ContentType, "image"):
		return "fa-file-image"
	case strings.Contains(a.ContentType, "text"):
		return "fa-file-alt"
	default:
		return "fa-file"
	}
}

// Message 是对话记录中的一条消息。
type Message struct {
	ID          string       `json:"id"`
	Sender      Sender       `json:"sender"`
	Timestamp   string       `json:"timestamp"`
	Body        Body         `json:"body"`
	Sources     *Sources     `json:"sources,omitempty"`
	ShowMenu    bool         `json:"showMenu,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// IsTabular 表示该消息以表格区块展示，正文文本被忽略。
func (m Message) IsTabular() bool {
	return m.Body.Kind == BodyTable && m.Body.Table != nil
}

// IsUser 表示消息是否由用户发送。
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// NewUserMessage 创建一条用户消息。
func NewUserMessage(text string, attachments []Attachment, now time.Time) Message {
	return Message{
		ID:          NewMessageID(),
		Sender:      SenderUser,
		Timestamp:   FormatTimestamp(now),
		Body:        TextBody(text),
		Attachments: attachments,
	}
}

// NewAssistantMessage 创建一条纯文本的助手消息。
func NewAssistantMessage(text string, now time.Time) Message {
	return Message{
		ID:        NewMessageID(),
		Sender:    SenderAssistant,
		Timestamp: FormatTimestamp(now),
		Body:      TextBody(text),
	}
}

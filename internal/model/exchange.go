package model

import "time"

// ArchivedExchange 是归档到 MySQL 的一条对话事件（问答、分类切换或重置）。
type ArchivedExchange struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"eventId"`
	Kind         string    `gorm:"type:varchar(16);not null" json:"kind"`
	SessionID    string    `gorm:"type:varchar(64);index;not null" json:"sessionId"`
	TranscriptID string    `gorm:"type:varchar(64);index;not null" json:"transcriptId"`
	Category     string    `gorm:"type:varchar(64)" json:"category,omitempty"`
	Question     string    `gorm:"type:text" json:"question,omitempty"`
	Answer       string    `gorm:"type:mediumtext" json:"answer,omitempty"`
	AnswerKind   string    `gorm:"type:varchar(16)" json:"answerKind,omitempty"`
	Sources      string    `gorm:"type:text" json:"sources,omitempty"`
	Failed       bool      `json:"failed"`
	OccurredAt   time.Time `gorm:"index" json:"occurredAt"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ArchivedExchange) TableName() string {
	return "chat_exchanges"
}

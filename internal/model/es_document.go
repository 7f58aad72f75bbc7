package model

import "time"

// ExchangeDocument 是索引到 Elasticsearch 的对话事件，供管理端全文检索。
type ExchangeDocument struct {
	EventID      string    `json:"event_id"`
	Kind         string    `json:"kind"`
	SessionID    string    `json:"session_id"`
	TranscriptID string    `json:"transcript_id"`
	Category     string    `json:"category,omitempty"`
	Question     string    `json:"question,omitempty"`
	Answer       string    `json:"answer,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ExchangeSearchHit 是返回给管理端的检索结果。
type ExchangeSearchHit struct {
	ExchangeDocument
	Score float64 `json:"score"`
}

// Package pipeline 定义了对话事件的归档流程。
package pipeline

import (
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/repository"
	"chat-widget-go/pkg/es"
	"chat-widget-go/pkg/log"
	"chat-widget-go/pkg/tasks"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxIndexedAnswer 是写入检索索引的回答最大字符数，完整内容保存在 MySQL 中。
const maxIndexedAnswer = 8000

// Processor 封装了归档一条对话事件的所有依赖和逻辑。
type Processor struct {
	archiveRepo repository.ArchiveRepository
	index       es.ExchangeIndex
}

// NewProcessor 创建一个新的 Processor 实例。index 为 nil 时只写数据库。
func NewProcessor(archiveRepo repository.ArchiveRepository, index es.ExchangeIndex) *Processor {
	return &Processor{archiveRepo: archiveRepo, index: index}
}

// Process 归档一条对话事件：先写 MySQL，再索引到 Elasticsearch。两步都以 EventID 去重，可以安全重试。
func (p *Processor) Process(ctx context.Context, event tasks.TranscriptEvent) error {
	if event.EventID == "" {
		return errors.New("事件缺少 event_id")
	}
	log.Infof("[Processor] 开始归档对话事件, EventID: %s, Kind: %s, TranscriptID: %s", event.EventID, event.Kind, event.TranscriptID)

	// 1. 写入 MySQL
	sources, err := json.Marshal(event.Sources)
	if err != nil {
		return fmt.Errorf("序列化来源失败: %w", err)
	}
	record := &model.ArchivedExchange{
		EventID:      event.EventID,
		Kind:         string(event.Kind),
		SessionID:    event.SessionID,
		TranscriptID: event.TranscriptID,
		Category:     event.Category,
		Question:     event.Question,
		Answer:       event.Answer,
		AnswerKind:   event.AnswerKind,
		Sources:      string(sources),
		Failed:       event.Failed,
		OccurredAt:   event.OccurredAt,
	}
	if err := p.archiveRepo.Create(record); err != nil {
		log.Errorf("[Processor] 保存归档记录失败, EventID: %s, Error: %v", event.EventID, err)
		return fmt.Errorf("保存归档记录失败: %w", err)
	}

	// 2. 只有问答事件需要全文检索
	if p.index == nil || event.Kind != tasks.EventExchange {
		return nil
	}
	doc := model.ExchangeDocument{
		EventID:      event.EventID,
		Kind:         string(event.Kind),
		SessionID:    event.SessionID,
		TranscriptID: event.TranscriptID,
		Category:     event.Category,
		Question:     event.Question,
		Answer:       truncateRunes(event.Answer, maxIndexedAnswer),
		OccurredAt:   event.OccurredAt,
	}
	if err := p.index.Index(ctx, doc); err != nil {
		log.Errorf("[Processor] 索引归档记录失败, EventID: %s, Error: %v", event.EventID, err)
		return fmt.Errorf("索引到 Elasticsearch 失败: %w", err)
	}
	log.Infof("[Processor] 对话事件归档完成, EventID: %s", event.EventID)
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Package kafka 提供了对话事件在 Kafka 中的生产和消费。
package kafka

import (
	"chat-widget-go/internal/config"
	"chat-widget-go/pkg/log"
	"chat-widget-go/pkg/tasks"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxAttempts 是一条事件的最大处理次数，全部失败后提交 offset 放弃。
const maxAttempts = 3

// retryBackoff 是第一次重试前的等待时间，之后按次数线性增加。
var retryBackoff = 500 * time.Millisecond

// EventProcessor 处理从 Kafka 收到的对话事件。
type EventProcessor interface {
	Process(ctx context.Context, event tasks.TranscriptEvent) error
}

var producer *kafka.Writer

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// InitProducer 初始化 Kafka 生产者。同一对话的事件使用相同的 key，保证顺序。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者并刷新未发送的消息。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// Publisher 把对话事件发布到 Kafka。
type Publisher struct{}

// Publish 发送一条对话事件。
func (Publisher) Publish(ctx context.Context, event tasks.TranscriptEvent) error {
	if producer == nil {
		return errors.New("kafka producer not initialised")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TranscriptID),
		Value: value,
	})
}

// StartConsumer 启动 Kafka 消费者处理对话事件，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		var event tasks.TranscriptEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := processWithRetry(ctx, processor, event); err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("对话事件重试 %d 次仍失败，提交 offset 放弃: event=%s, err=%v", maxAttempts, event.EventID, err)
		}
		commit(ctx, r, m)
	}
}

// processWithRetry 在当前消息上最多尝试 maxAttempts 次，每次失败后按 retryBackoff 递增等待。
// 消费组不会重新投递未提交的消息，重试只能在这里完成。
func processWithRetry(ctx context.Context, processor EventProcessor, event tasks.TranscriptEvent) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = processor.Process(ctx, event); err == nil {
			return nil
		}
		log.Warnf("处理对话事件失败: event=%s, attempt=%d, err=%v", event.EventID, attempt, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

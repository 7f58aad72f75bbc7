// Package transcript 保存一个聊天会话的消息序列。
package transcript

import (
	"encoding/json"
	"time"

	"chat-widget-go/internal/model"
)

// Store 是只追加的消息序列，唯一的整体操作是 Reset。
// 不支持删除或修改中间的消息，也不限制长度。
type Store struct {
	id       string
	messages []model.Message
}

// New 创建一个只包含欢迎消息的对话。
func New(welcome string, now time.Time) *Store {
	s := &Store{}
	s.Reset(welcome, now)
	return s
}

// Restore 用已有的消息序列（例如从后端历史恢复）创建对话。
func Restore(id string, messages []model.Message) *Store {
	s := &Store{id: id}
	s.messages = append(s.messages, messages...)
	return s
}

// Append 把消息追加到末尾，返回它的下标。
func (s *Store) Append(msg model.Message) int {
	s.messages = append(s.messages, msg)
	return len(s.messages) - 1
}

// Reset 用一条新的欢迎消息替换整个序列，并生成新的对话标识。
func (s *Store) Reset(welcome string, now time.Time) {
	s.id = model.NewTranscriptID(now)
	s.messages = []model.Message{model.NewAssistantMessage(welcome, now)}
}

// Messages 按追加顺序返回消息的副本。
func (s *Store) Messages() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// At 返回指定下标的消息。
func (s *Store) At(i int) (model.Message, bool) {
	if i < 0 || i >= len(s.messages) {
		return model.Message{}, false
	}
	return s.messages[i], true
}

// Find 按消息标识查找消息及其下标。
func (s *Store) Find(id string) (model.Message, int, bool) {
	for i, m := range s.messages {
		if m.ID == id {
			return m, i, true
		}
	}
	return model.Message{}, -1, false
}

func (s *Store) Len() int {
	return len(s.messages)
}

func (s *Store) ID() string {
	return s.id
}

type storeJSON struct {
	ID       string          `json:"id"`
	Messages []model.Message `json:"messages"`
}

func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(storeJSON{ID: s.id, Messages: s.messages})
}

func (s *Store) UnmarshalJSON(data []byte) error {
	var raw storeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.id = raw.ID
	s.messages = raw.Messages
	return nil
}

package model

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timestampLayout 对应 en-US 的 "Oct 18, 3:04 PM" 展示格式。
const timestampLayout = "Jan 2, 3:04 PM"

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// FormatTimestamp 生成消息上展示的时间戳字符串。
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// NewTranscriptID 生成对话标识，格式为 chat-<毫秒时间戳>-<9 位随机字符>。
func NewTranscriptID(now time.Time) string {
	return fmt.Sprintf("chat-%d-%s", now.UnixMilli(), randomSuffix(9))
}

// NewMessageID 为单条消息生成唯一标识，增量渲染时以它作为 key。
func NewMessageID() string {
	return uuid.NewString()
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// 随机源不可用时退化为 uuid 的前 n 位
		return uuid.NewString()[:n]
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}

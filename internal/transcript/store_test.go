package transcript

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget-go/internal/model"
)

const welcome = "Hi! How can I help you today?"

var now = time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)

func TestNewStartsWithWelcome(t *testing.T) {
	s := New(welcome, now)

	require.Equal(t, 1, s.Len())
	first, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, model.SenderAssistant, first.Sender)
	assert.Equal(t, welcome, first.Body.Text)
	assert.Regexp(t, `^chat-\d+-[0-9a-z]{9}$`, s.ID())
}

func TestAppendPreservesOrder(t *testing.T) {
	s := New(welcome, now)
	for i := 0; i < 5; i++ {
		idx := s.Append(model.NewUserMessage(fmt.Sprintf("msg %d", i), nil, now))
		assert.Equal(t, i+1, idx)
	}

	msgs := s.Messages()
	require.Len(t, msgs, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msgs[i+1].Body.Text)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New(welcome, now)
	msgs := s.Messages()
	msgs[0].Body.Text = "changed"

	first, _ := s.At(0)
	assert.Equal(t, welcome, first.Body.Text)
}

func TestResetYieldsSingleWelcomeAndNewID(t *testing.T) {
	s := New(welcome, now)
	s.Append(model.NewUserMessage("hello", nil, now))
	s.Append(model.NewAssistantMessage("hi", now))
	oldID := s.ID()

	s.Reset(welcome, now.Add(time.Second))

	require.Equal(t, 1, s.Len())
	first, _ := s.At(0)
	assert.Equal(t, welcome, first.Body.Text)
	assert.NotEqual(t, oldID, s.ID())
}

func TestFind(t *testing.T) {
	s := New(welcome, now)
	msg := model.NewUserMessage("hello", nil, now)
	s.Append(msg)

	found, idx, ok := s.Find(msg.ID)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "hello", found.Body.Text)

	_, _, ok = s.Find("missing")
	assert.False(t, ok)
}

func TestSessionJSONRoundTrip(t *testing.T) {
	sess := NewSession("sid-1", welcome, now)
	sess.CurrentCategory = "HR Policy"
	sess.Transcript.Append(model.NewUserMessage("hello", nil, now))

	data, err := json.Marshal(sess)
	require.NoError(t, err)

	var decoded Session
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sid-1", decoded.SessionID)
	assert.Equal(t, "HR Policy", decoded.CurrentCategory)
	assert.Equal(t, sess.Transcript.ID(), decoded.Transcript.ID())
	assert.Equal(t, sess.Transcript.Messages(), decoded.Transcript.Messages())
}

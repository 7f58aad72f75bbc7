package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReplyClassification(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind BodyKind
		wantText string
	}{
		{"string", `{"response":"hello"}`, BodyText, "hello"},
		{"missing response", `{}`, BodyText, FallbackResponse},
		{"empty string", `{"response":""}`, BodyText, FallbackResponse},
		{"null response", `{"response":null}`, BodyText, FallbackResponse},
		{"rows", `{"response":[{"x":1,"y":2}]}`, BodyTable, ""},
		{"empty array", `{"response":[]}`, BodyText, FallbackResponse},
		{"string array", `{"response":["a","b"]}`, BodyText, "a\nb"},
		{"structured code", `{"response":{"text":"see","code":"x := 1","language":"go"}}`, BodyCode, "see"},
		{"object without code", `{"response":{"text":"only text"}}`, BodyText, "only text"},
		{"object without fields", `{"response":{"other":1}}`, BodyText, FallbackResponse},
		{"number", `{"response":7}`, BodyText, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := DecodeReply([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, reply.Body.Kind)
			assert.Equal(t, tt.wantText, reply.Body.Text)
		})
	}
}

func TestDecodeReplyTableWithChart(t *testing.T) {
	reply, err := DecodeReply([]byte(`{"response":[{"x":1,"y":2}],"chartData":{"labels":["p"],"values":["$2"]}}`))
	require.NoError(t, err)

	require.Equal(t, BodyTable, reply.Body.Kind)
	table := reply.Body.Table
	assert.Equal(t, []string{"x", "y"}, table.Columns)
	require.Len(t, table.Rows, 1)
	require.NotNil(t, table.Chart)
	assert.Equal(t, []string{"p"}, table.Chart.Labels)
	assert.Equal(t, []float64{2}, table.Chart.Values)
}

func TestDecodeReplyRejectsNonJSON(t *testing.T) {
	_, err := DecodeReply([]byte(`<html>oops</html>`))
	assert.Error(t, err)
}

func TestDecodeReplySources(t *testing.T) {
	t.Run("citations", func(t *testing.T) {
		reply, err := DecodeReply([]byte(`{"response":"ok","suggestion":[{"category":"HR","document":"Leave.pdf","page":3},{"category":"HR","document":"Pay.pdf"}]}`))
		require.NoError(t, err)
		require.NotNil(t, reply.Sources)
		assert.Equal(t, SourcesCitations, reply.Sources.Kind)
		require.Len(t, reply.Sources.Citations, 2)
		assert.Equal(t, "HR - Leave.pdf (Page 3)", reply.Sources.Citations[0].Label())
		assert.Equal(t, "HR - Pay.pdf", reply.Sources.Citations[1].Label())
	})

	t.Run("suggestions with tips", func(t *testing.T) {
		reply, err := DecodeReply([]byte(`{"response":"ok","suggestions":["What is X?",{"tip":"Try being specific"}]}`))
		require.NoError(t, err)
		require.NotNil(t, reply.Sources)
		assert.Equal(t, SourcesSuggestions, reply.Sources.Kind)
		assert.Equal(t, []Suggestion{{Text: "What is X?"}, {Text: "Try being specific", Tip: true}}, reply.Sources.Suggestions)
	})

	t.Run("free text", func(t *testing.T) {
		reply, err := DecodeReply([]byte(`{"response":"ok","suggestion":"see the handbook"}`))
		require.NoError(t, err)
		require.NotNil(t, reply.Sources)
		assert.Equal(t, SourcesFreeText, reply.Sources.Kind)
		assert.Equal(t, "see the handbook", reply.Sources.Text)
	})

	t.Run("missing and empty", func(t *testing.T) {
		for _, body := range []string{`{"response":"ok"}`, `{"response":"ok","suggestion":[]}`, `{"response":"ok","suggestion":""}`} {
			reply, err := DecodeReply([]byte(body))
			require.NoError(t, err)
			assert.Nil(t, reply.Sources, body)
		}
	})
}

func TestReplyMessageTimestamp(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)

	reply, err := DecodeReply([]byte(`{"response":"ok","show_menu":true,"timestamp":"Oct 1, 9:00 AM"}`))
	require.NoError(t, err)
	msg := reply.Message(now)
	assert.Equal(t, "Oct 1, 9:00 AM", msg.Timestamp)
	assert.True(t, msg.ShowMenu)
	assert.Equal(t, SenderAssistant, msg.Sender)

	reply, err = DecodeReply([]byte(`{"response":"ok","show_menu":"yes"}`))
	require.NoError(t, err)
	msg = reply.Message(now)
	assert.Equal(t, "Oct 18, 3:04 PM", msg.Timestamp)
	assert.False(t, msg.ShowMenu)
}

func TestDecodeHistory(t *testing.T) {
	now := time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)
	items := []json.RawMessage{
		json.RawMessage(`{"content":"hello","sender":"user","timestamp":"Oct 18, 3:00 PM"}`),
		json.RawMessage(`{"content":"hi","sender":"assistant","showCategories":true,"sources":["More?"]}`),
		json.RawMessage(`{"content":"","sender":"assistant","isTabular":true,"data":{"rows":[{"a":1}],"suggestions":["next"],"chartData":{"labels":["a"],"values":[1]}}}`),
		json.RawMessage(`{"message":"q","response":"a","sources":[{"category":"IT","document":"VPN.pdf","page":"2"}]}`),
		json.RawMessage(`not json`),
	}

	msgs := DecodeHistory(items, now)
	require.Len(t, msgs, 5)

	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "Oct 18, 3:00 PM", msgs[0].Timestamp)

	assert.Equal(t, SenderAssistant, msgs[1].Sender)
	assert.True(t, msgs[1].ShowMenu)
	assert.Equal(t, "Oct 18, 3:04 PM", msgs[1].Timestamp)
	require.NotNil(t, msgs[1].Sources)
	assert.Equal(t, SourcesSuggestions, msgs[1].Sources.Kind)

	assert.True(t, msgs[2].IsTabular())
	assert.NotNil(t, msgs[2].Body.Table.Chart)
	assert.Equal(t, "next", msgs[2].Sources.Suggestions[0].Text)

	assert.Equal(t, SenderUser, msgs[3].Sender)
	assert.Equal(t, "q", msgs[3].Body.Text)
	assert.Equal(t, "a", msgs[4].Body.Text)
	assert.Equal(t, "IT - VPN.pdf (Page 2)", msgs[4].Sources.Citations[0].Label())
}

func TestAttachmentIcon(t *testing.T) {
	assert.Equal(t, "fa-file-pdf", Attachment{ContentType: "application/pdf"}.Icon())
	assert.Equal(t, "fa-file-image", Attachment{ContentType: "image/png"}.Icon())
	assert.Equal(t, "fa-file", Attachment{ContentType: "application/zip"}.Icon())
}

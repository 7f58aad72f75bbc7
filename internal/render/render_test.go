package render

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget-go/internal/model"
	"chat-widget-go/internal/transcript"
	"chat-widget-go/pkg/chart"
)

var now = time.Date(2026, 10, 18, 15, 4, 0, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(Options{AssistantName: "JIA", LogoURL: "/static/logo.png", PageSize: 2, BasePath: "/api/v1/widget"})
	require.NoError(t, err)
	return r
}

func tableMessage(t *testing.T, body string) model.Message {
	t.Helper()
	reply, err := model.DecodeReply([]byte(body))
	require.NoError(t, err)
	require.Equal(t, model.BodyTable, reply.Body.Kind)
	return reply.Message(now)
}

var messageIDs = regexp.MustCompile(`data-message-id="([^"]+)"`)

func TestRenderTranscriptOrderAndMenu(t *testing.T) {
	r := newTestRenderer(t)
	sess := transcript.NewSession("s1", "Welcome!", now)
	var want []string
	first, _ := sess.Transcript.At(0)
	want = append(want, first.ID)
	for i := 0; i < 3; i++ {
		msg := model.NewUserMessage(fmt.Sprintf("question %d", i), nil, now)
		sess.Transcript.Append(msg)
		want = append(want, msg.ID)
	}

	out, err := r.RenderTranscript(sess, nil)
	require.NoError(t, err)

	var got []string
	for _, m := range messageIDs.FindAllStringSubmatch(out, -1) {
		got = append(got, m[1])
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 1, strings.Count(out, `class="categories"`), "only the welcome message carries the menu")
	assert.Contains(t, out, `data-select-category="SOPP_Operation"`)
	assert.Contains(t, out, `data-scroll="bottom"`)
	assert.NotContains(t, out, "loading-placeholder")
}

func TestRenderTranscriptLoadingPlaceholder(t *testing.T) {
	r := newTestRenderer(t)
	sess := transcript.NewSession("s1", "Welcome!", now)
	sess.Loading = true

	out, err := r.RenderTranscript(sess, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `id="loading-placeholder"`)
	assert.Equal(t, 1, sess.Transcript.Len())
}

func TestRenderMessageMatchesFullRender(t *testing.T) {
	r := newTestRenderer(t)
	sess := transcript.NewSession("s1", "Welcome!", now)
	msg := model.NewAssistantMessage("**hi**", now)
	msg.ShowMenu = true
	idx := sess.Transcript.Append(msg)

	fragment, err := r.RenderMessage(msg, idx, nil)
	require.NoError(t, err)
	full, err := r.RenderTranscript(sess, nil)
	require.NoError(t, err)

	assert.Contains(t, full, fragment)
	assert.Contains(t, fragment, "<strong>hi</strong>")
	assert.Contains(t, fragment, `class="categories"`)
}

func TestRenderUserTextIsEscaped(t *testing.T) {
	r := newTestRenderer(t)
	out, err := r.RenderMessage(model.NewUserMessage("<script>x</script> **b**", nil, now), 1, nil)
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "<strong>b</strong>")
	assert.Contains(t, out, `<div class="message-sender">You</div>`)
}

func TestRenderSources(t *testing.T) {
	r := newTestRenderer(t)
	reply, err := model.DecodeReply([]byte(`{"response":"ok","suggestion":[{"category":"HR","document":"Leave.pdf","page":3}]}`))
	require.NoError(t, err)
	out, err := r.RenderMessage(reply.Message(now), 1, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "HR - Leave.pdf (Page 3)")

	reply, err = model.DecodeReply([]byte(`{"response":"ok","suggestion":["Next?",{"tip":"Be specific"}]}`))
	require.NoError(t, err)
	out, err = r.RenderMessage(reply.Message(now), 1, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Suggested queries:")
	assert.Contains(t, out, `data-suggestion="Next?"`)
	assert.Contains(t, out, `<div class="suggestion-item tip">Be specific</div>`)

	reply, err = model.DecodeReply([]byte(`{"response":"ok","suggestion":"see handbook"}`))
	require.NoError(t, err)
	out, err = r.RenderMessage(reply.Message(now), 1, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="message-sources">see handbook</div>`)
}

func TestRenderStructuredCode(t *testing.T) {
	r := newTestRenderer(t)
	reply, err := model.DecodeReply([]byte(`{"response":{"text":"Try this:","code":"fmt.Println(\"hi\")","language":"go"}}`))
	require.NoError(t, err)
	out, err := r.RenderMessage(reply.Message(now), 1, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "Try this:")
	assert.Contains(t, out, `<span class="code-language">go</span>`)
	assert.Contains(t, out, `data-copy="fmt.Println(&#34;hi&#34;)"`)
}

func TestRenderAttachmentsBadges(t *testing.T) {
	r := newTestRenderer(t)
	msg := model.NewUserMessage("see file", []model.Attachment{{ID: "att-1", Name: "report.pdf", ContentType: "application/pdf"}}, now)
	out, err := r.RenderMessage(msg, 1, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `href="/api/v1/widget/attachments/att-1"`)
	assert.Contains(t, out, "fa-file-pdf")
	assert.Contains(t, out, "report.pdf")
}

func TestRenderTabularBlockColumnPreference(t *testing.T) {
	r := newTestRenderer(t)
	msg := tableMessage(t, `{"response":[{"a":1,"b":2,"c":3}]}`)

	out, err := r.RenderMessage(msg, 1, []string{"c", "a"})
	require.NoError(t, err)

	assert.Contains(t, out, "<thead><tr><th>c</th><th>a</th></tr></thead>")
	assert.Contains(t, out, "<tr><td>3</td><td>1</td></tr>")
	assert.NotContains(t, out, "message-avatar")
	assert.NotContains(t, out, "data-chart-img")
}

func TestRenderTabularBlockWithChart(t *testing.T) {
	r := newTestRenderer(t)
	msg := tableMessage(t, `{"response":[{"x":1,"y":2}],"chartData":{"labels":["p"],"values":["$2"]}}`)

	out, err := r.RenderTable(msg, nil, TableQuery{Page: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "<th>x</th><th>y</th>")
	assert.Contains(t, out, `<option value="bar" selected>Bar</option>`)
	assert.Contains(t, out, "/chart.png?chart=bar")

	pie, err := r.RenderTable(msg, nil, TableQuery{Page: 1, Chart: chart.Pie})
	require.NoError(t, err)
	assert.Contains(t, pie, `<option value="pie" selected>Pie</option>`)
	assert.Contains(t, pie, "/chart.png?chart=pie")
	assert.Contains(t, pie, "<tr><td>1</td><td>2</td></tr>")
}

func TestRenderTableRejectsTextMessage(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.RenderTable(model.NewAssistantMessage("hi", now), nil, TableQuery{})
	assert.ErrorIs(t, err, ErrNotTabular)
}

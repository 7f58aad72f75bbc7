package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// FallbackResponse 在后端响应缺少 response 字段时使用。
	FallbackResponse = "I'm not sure how to respond to that."
	// TransportErrorMessage 在请求失败（网络错误或非 2xx）时追加到对话中。
	TransportErrorMessage = "Sorry, I couldn't process your request. Please try again later."
)

// Reply 是经过分类的后端响应。形态判断只在这里做一次，渲染时不再重复检查。
type Reply struct {
	Body      Body
	Sources   *Sources
	ShowMenu  bool
	Timestamp string
}

// Message 把响应转换为一条助手消息。后端提供了时间戳时沿用，否则使用 now。
func (r *Reply) Message(now time.Time) Message {
	ts := r.Timestamp
	if ts == "" {
		ts = FormatTimestamp(now)
	}
	return Message{
		ID:        NewMessageID(),
		Sender:    SenderAssistant,
		Timestamp: ts,
		Body:      r.Body,
		Sources:   r.Sources,
		ShowMenu:  r.ShowMenu,
	}
}

type rawReply struct {
	Response    json.RawMessage `json:"response"`
	Suggestion  json.RawMessage `json:"suggestion"`
	Suggestions json.RawMessage `json:"suggestions"`
	ChartData   json.RawMessage `json:"chartData"`
	ShowMenu    json.RawMessage `json:"show_menu"`
	Timestamp   json.RawMessage `json:"timestamp"`
}

// DecodeReply 解析 /get-response 的 JSON 响应体。
// 缺失或格式不对的字段使用默认值替代；只有整个响应体不是 JSON 对象时才返回错误。
func DecodeReply(data []byte) (*Reply, error) {
	var raw rawReply
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode backend reply: %w", err)
	}
	sources := raw.Suggestion
	if isJSONNull(sources) {
		sources = raw.Suggestions
	}
	return &Reply{
		Body:      classifyBody(raw.Response, raw.ChartData),
		Sources:   decodeSources(sources),
		ShowMenu:  decodeBool(raw.ShowMenu),
		Timestamp: decodeString(raw.Timestamp),
	}, nil
}

// classifyBody 决定响应的展示类型：
// 非空且全部元素为对象的数组 → 表格；含 text/code 的对象 → 结构化代码；字符串 → 文本；其它 → 兜底文本。
func classifyBody(response, chartData json.RawMessage) Body {
	if isJSONNull(response) {
		return TextBody(FallbackResponse)
	}
	if isJSONArray(response) {
		if table, ok := decodeRows(response); ok {
			table.Chart = decodeChart(chartData)
			return Body{Kind: BodyTable, Table: table}
		}
		var items []any
		if err := json.Unmarshal(response, &items); err != nil || len(items) == 0 {
			return TextBody(FallbackResponse)
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			lines = append(lines, CellString(item))
		}
		return TextBody(strings.Join(lines, "\n"))
	}
	if isJSONObject(response) {
		var structured struct {
			Text     string `json:"text"`
			Code     string `json:"code"`
			Language string `json:"language"`
		}
		if err := json.Unmarshal(response, &structured); err != nil || (structured.Text == "" && structured.Code == "") {
			return TextBody(FallbackResponse)
		}
		if structured.Code == "" {
			return TextBody(structured.Text)
		}
		return Body{Kind: BodyCode, Text: structured.Text, Code: structured.Code, Language: structured.Language}
	}
	var value any
	if err := json.Unmarshal(response, &value); err != nil {
		return TextBody(FallbackResponse)
	}
	text := CellString(value)
	if text == "" {
		return TextBody(FallbackResponse)
	}
	return TextBody(text)
}

// decodeSources 根据第一个元素的类型区分引用列表与建议列表；单个字符串作为自由文本。
func decodeSources(raw json.RawMessage) *Sources {
	if isJSONNull(raw) {
		return nil
	}
	if !isJSONArray(raw) {
		text := decodeString(raw)
		if text == "" {
			return nil
		}
		return &Sources{Kind: SourcesFreeText, Text: text}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
		return nil
	}
	if isJSONObject(elems[0]) {
		citations := make([]Citation, 0, len(elems))
		for _, elem := range elems {
			var c struct {
				Category any `json:"category"`
				Document any `json:"document"`
				Page     any `json:"page"`
			}
			if !isJSONObject(elem) || json.Unmarshal(elem, &c) != nil {
				continue
			}
			citations = append(citations, Citation{
				Category: CellString(c.Category),
				Document: CellString(c.Document),
				Page:     pageString(c.Page),
			})
		}
		if len(citations) == 0 {
			return nil
		}
		return &Sources{Kind: SourcesCitations, Citations: citations}
	}
	suggestions := make([]Suggestion, 0, len(elems))
	for _, elem := range elems {
		if isJSONObject(elem) {
			var tip struct {
				Tip string `json:"tip"`
			}
			if json.Unmarshal(elem, &tip) == nil && tip.Tip != "" {
				suggestions = append(suggestions, Suggestion{Text: tip.Tip, Tip: true})
			}
			continue
		}
		if text := decodeString(elem); text != "" {
			suggestions = append(suggestions, Suggestion{Text: text})
		}
	}
	if len(suggestions) == 0 {
		return nil
	}
	return &Sources{Kind: SourcesSuggestions, Suggestions: suggestions}
}

// pageString 页码为 0、空或缺失时返回空字符串。
func pageString(v any) string {
	s := CellString(v)
	if s == "0" || s == "false" {
		return ""
	}
	return s
}

func decodeString(raw json.RawMessage) string {
	var s string
	if isJSONNull(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	if isJSONNull(raw) || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

type rawHistoryMessage struct {
	ID             string          `json:"id"`
	Content        json.RawMessage `json:"content"`
	Sender         string          `json:"sender"`
	Timestamp      string          `json:"timestamp"`
	Sources        json.RawMessage `json:"sources"`
	ShowMenu       bool            `json:"showMenu"`
	ShowCategories bool            `json:"showCategories"`
	IsTabular      bool            `json:"isTabular"`
	Data           json.RawMessage `json:"data"`

	// 历史记录文件中的一问一答格式
	Question json.RawMessage `json:"message"`
	Response json.RawMessage `json:"response"`
}

// DecodeHistory 把 /get-chat-history 返回的 history 数组转换为消息列表。
// 同时兼容单条消息格式和 {message, response, sources, timestamp} 的一问一答格式。
func DecodeHistory(items []json.RawMessage, now time.Time) []Message {
	messages := make([]Message, 0, len(items))
	for _, item := range items {
		var raw rawHistoryMessage
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		ts := raw.Timestamp
		if ts == "" {
			ts = FormatTimestamp(now)
		}
		if raw.Sender == "" && (!isJSONNull(raw.Question) || !isJSONNull(raw.Response)) {
			if q := decodeString(raw.Question); q != "" {
				messages = append(messages, Message{ID: NewMessageID(), Sender: SenderUser, Timestamp: ts, Body: TextBody(q)})
			}
			messages = append(messages, Message{
				ID:        NewMessageID(),
				Sender:    SenderAssistant,
				Timestamp: ts,
				Body:      classifyBody(raw.Response, nil),
				Sources:   decodeSources(raw.Sources),
			})
			continue
		}

		msg := Message{
			ID:        raw.ID,
			Sender:    SenderAssistant,
			Timestamp: ts,
			Sources:   decodeSources(raw.Sources),
			ShowMenu:  raw.ShowMenu || raw.ShowCategories,
		}
		if msg.ID == "" {
			msg.ID = NewMessageID()
		}
		if raw.Sender == string(SenderUser) {
			msg.Sender = SenderUser
		}
		msg.Body = classifyBody(raw.Content, nil)
		if raw.IsTabular {
			if body, sources, ok := decodeTabularData(raw.Data); ok {
				msg.Body = body
				if sources != nil {
					msg.Sources = sources
				}
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

// decodeTabularData 解析嵌套的 {rows, suggestions, chartData} 表格负载。
func decodeTabularData(raw json.RawMessage) (Body, *Sources, bool) {
	var data struct {
		Rows        json.RawMessage `json:"rows"`
		Suggestions json.RawMessage `json:"suggestions"`
		ChartData   json.RawMessage `json:"chartData"`
	}
	if isJSONNull(raw) || json.Unmarshal(raw, &data) != nil {
		return Body{}, nil, false
	}
	table, ok := decodeRows(data.Rows)
	if !ok {
		return Body{}, nil, false
	}
	table.Chart = decodeChart(data.ChartData)
	return Body{Kind: BodyTable, Table: table}, decodeSources(data.Suggestions), true
}

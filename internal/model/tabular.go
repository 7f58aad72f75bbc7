package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// TabularPayload 是表格响应：若干同构的行（列名 → 单元格值），可附带图表数据。
// Columns 记录第一行的键顺序，JSON 对象解码成 map 后顺序会丢失。
type TabularPayload struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Chart   *ChartData       `json:"chart,omitempty"`
}

// ChartData 是图表的标签与数值，数值在入库时已完成数字化。
type ChartData struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Cell 返回某行某列的展示文本，缺失值为空字符串。
func (p *TabularPayload) Cell(row int, column string) string {
	if row < 0 || row >= len(p.Rows) {
		return ""
	}
	v, ok := p.Rows[row][column]
	if !ok {
		return ""
	}
	return CellString(v)
}

// CellString 把 JSON 解码得到的任意值转换为单元格文本。
func CellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

var (
	nonNumericChars = regexp.MustCompile(`[^0-9.-]+`)
	// 与 parseFloat 一致：只解析最长的合法数字前缀
	numericPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// CoerceNumber 把图表数值转换为 float64：数字原样返回；字符串先去掉数字、小数点和负号以外的字符再解析；
// 无法解析时返回 0。
func CoerceNumber(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(val)
	case string:
		cleaned := nonNumericChars.ReplaceAllString(val, "")
		prefix := numericPrefix.FindString(cleaned)
		if prefix == "" {
			return 0
		}
		f, err := strconv.ParseFloat(prefix, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

var errNotObject = errors.New("not a JSON object")

// decodeRows 把 JSON 数组解码成表格行。仅当数组非空且每个元素都是对象时返回 ok。
func decodeRows(raw json.RawMessage) (*TabularPayload, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || len(elems) == 0 {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(elems))
	for _, elem := range elems {
		if !isJSONObject(elem) {
			return nil, false
		}
		var row map[string]any
		if err := json.Unmarshal(elem, &row); err != nil {
			return nil, false
		}
		rows = append(rows, row)
	}
	columns, err := objectKeys(elems[0])
	if err != nil {
		return nil, false
	}
	return &TabularPayload{Columns: columns, Rows: rows}, true
}

// objectKeys 按出现顺序返回 JSON 对象的键，重复的键只保留第一次。
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}
	seen := make(map[string]bool)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errNotObject
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// decodeChart 解析 {labels, values}，两者都存在时才返回图表。
func decodeChart(raw json.RawMessage) *ChartData {
	if len(raw) == 0 {
		return nil
	}
	var payload struct {
		Labels []any `json:"labels"`
		Values []any `json:"values"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Labels == nil || payload.Values == nil {
		return nil
	}
	chart := &ChartData{
		Labels: make([]string, 0, len(payload.Labels)),
		Values: make([]float64, 0, len(payload.Values)),
	}
	for _, l := range payload.Labels {
		chart.Labels = append(chart.Labels, CellString(l))
	}
	for _, v := range payload.Values {
		chart.Values = append(chart.Values, CoerceNumber(v))
	}
	return chart
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

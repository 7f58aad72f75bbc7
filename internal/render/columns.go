package render

import (
	"net/url"
	"strings"
)

// ColumnsCookie 是保存表格列偏好的 Cookie 名。
const ColumnsCookie = "columns"

// ParseColumnPreference 解码 columns Cookie 的原始值。
// 值形如 "c\054a"：先把 \054 还原为逗号，再做 URI 解码，按逗号拆分，去掉首尾引号后 trim。
// 空项和重复项会被丢弃。
func ParseColumnPreference(raw string) []string {
	if raw == "" {
		return nil
	}
	s := strings.ReplaceAll(raw, `\054`, ",")
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	seen := make(map[string]bool)
	var columns []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimPrefix(part, `"`)
		part = strings.TrimSuffix(part, `"`)
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		columns = append(columns, part)
	}
	return columns
}

// EncodeColumnPreference 按 ParseColumnPreference 能读回的格式编码列偏好。
func EncodeColumnPreference(columns []string) string {
	escaped := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(c))
	}
	return `"` + strings.Join(escaped, `\054`) + `"`
}

// ColumnPreferenceFromHeader 从原始 Cookie 请求头中取出 columns 的值。
// net/http 的 Cookie 解析会拒绝包含反斜杠的值，因此这里直接按 "; " 拆分请求头。
func ColumnPreferenceFromHeader(header string) []string {
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == ColumnsCookie {
			return ParseColumnPreference(value)
		}
	}
	return nil
}

// SelectColumns 返回展示的列：没有偏好时为第一行的全部键；
// 有偏好时取偏好与可用列的交集，顺序以偏好为准。
func SelectColumns(available, preference []string) []string {
	if len(preference) == 0 {
		return available
	}
	byName := make(map[string]string, len(available))
	for _, key := range available {
		trimmed := strings.TrimSpace(key)
		if _, ok := byName[trimmed]; !ok {
			byName[trimmed] = key
		}
	}
	selected := make([]string, 0, len(preference))
	for _, name := range preference {
		if key, ok := byName[name]; ok {
			selected = append(selected, key)
			delete(byName, name)
		}
	}
	return selected
}

// Package markdown 实现聊天气泡使用的 markdown 子集到 HTML 的转换。
package markdown

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// 规则按固定顺序执行，后面的规则会看到前面规则的输出。
// 列表的分组需要零宽断言，标准库 regexp 不支持，因此使用 regexp2。
var (
	boldRe       = regexp2.MustCompile(`\*\*(.*?)\*\*`, regexp2.None)
	italicRe     = regexp2.MustCompile(`\*(.*?)\*`, regexp2.None)
	h3Re         = regexp2.MustCompile(`^### (.*?)$`, regexp2.Multiline)
	h2Re         = regexp2.MustCompile(`^## (.*?)$`, regexp2.Multiline)
	h1Re         = regexp2.MustCompile(`^# (.*?)$`, regexp2.Multiline)
	bulletRe     = regexp2.MustCompile(`^- (.*?)$`, regexp2.Multiline)
	orderedRe    = regexp2.MustCompile(`^(\d+)\. (.*?)$`, regexp2.Multiline)
	listRunRe    = regexp2.MustCompile(`<li>.*?</li>(?!\n<li>)`, regexp2.Singleline)
	fencedRe     = regexp2.MustCompile("```(.*?)\\n([\\s\\S]*?)```", regexp2.None)
	inlineCodeRe = regexp2.MustCompile("`(.*?)`", regexp2.None)
)

// Format 把 markdown-lite 文本转换为 HTML 片段。空输入返回空字符串。
//
// 支持：粗体、斜体、一到三级标题、无序/有序列表、带语言标记的围栏代码块、行内代码和换行。
// 调用方负责在此之前对不可信文本做 HTML 转义。
func Format(text string) string {
	if text == "" {
		return ""
	}
	text = replace(boldRe, text, "<strong>$1</strong>")
	text = replace(italicRe, text, "<em>$1</em>")
	text = replace(h3Re, text, "<h3>$1</h3>")
	text = replace(h2Re, text, "<h2>$1</h2>")
	text = replace(h1Re, text, "<h1>$1</h1>")

	text = replace(bulletRe, text, "<li>$1</li>")
	text = wrapRuns(text, "<ul>", "</ul>")

	text = replace(orderedRe, text, "<li>$2</li>")
	text = wrapRuns(text, "<ol>", "</ol>")

	text = replaceFunc(fencedRe, text, func(m regexp2.Match) string {
		language := m.GroupByNumber(1).String()
		code := m.GroupByNumber(2).String()
		if language == "" {
			language = "plain"
		}
		return `<div class="code-block"><div class="code-header"><span class="code-language">` + language +
			`</span><button class="copy-code-btn" onclick="copyCode(this, '` + CopyPayload(code) +
			`')">Copy code</button></div><pre><code>` + code + `</code></pre></div>`
	})

	text = replace(inlineCodeRe, text, "<code>$1</code>")
	return strings.ReplaceAll(text, "\n", "<br>")
}

// CopyPayload 转义复制按钮 onclick 参数中的引号。
// 单引号用于 JS 字符串，双引号位于 HTML 属性内，因此转成实体。
func CopyPayload(code string) string {
	code = strings.ReplaceAll(code, `'`, `\'`)
	return strings.ReplaceAll(code, `"`, `\&quot;`)
}

// wrapRuns 把连续的 <li> 行包进列表容器。已经处于 <ul> 内的一组不会再包一层。
func wrapRuns(text, open, close string) string {
	runes := []rune(text)
	return replaceFunc(listRunRe, text, func(m regexp2.Match) string {
		// regexp2 的 Index 以 rune 计
		if strings.HasSuffix(string(runes[:m.Index]), "<ul>") {
			return m.String()
		}
		return open + m.String() + close
	})
}

func replace(re *regexp2.Regexp, text, replacement string) string {
	out, err := re.Replace(text, replacement, -1, -1)
	if err != nil {
		return text
	}
	return out
}

func replaceFunc(re *regexp2.Regexp, text string, fn regexp2.MatchEvaluator) string {
	out, err := re.ReplaceFunc(text, fn, -1, -1)
	if err != nil {
		return text
	}
	return out
}

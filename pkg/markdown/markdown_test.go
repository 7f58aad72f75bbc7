package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "", Format(""))
}

func TestFormatInline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "**a**", "<strong>a</strong>"},
		{"italic", "an *emphasis*", "an <em>emphasis</em>"},
		{"inline code", "use `go test`", "use <code>go test</code>"},
		{"line breaks", "one\ntwo", "one<br>two"},
		{"headers", "# A\n## B\n### C", "<h1>A</h1><br><h2>B</h2><br><h3>C</h3>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestFormatLists(t *testing.T) {
	assert.Equal(t, "<ul><li>a</li><br><li>b</li></ul>", Format("- a\n- b"))
	assert.Equal(t, "<ol><li>a</li><br><li>b</li></ol>", Format("1. a\n2. b"))

	// 无序列表不会再被包进 <ol>
	mixed := Format("- a\n\n1. b")
	assert.Equal(t, "<ul><li>a</li></ul><br><br><ol><li>b</li></ol>", mixed)
}

func TestFormatFencedBlock(t *testing.T) {
	out := Format("```js\nalert('hi \"x\"')\n```")

	assert.Contains(t, out, `<span class="code-language">js</span>`)
	assert.Contains(t, out, `<pre><code>alert('hi "x"')<br></code></pre>`)
	assert.Contains(t, out, `copyCode(this, 'alert(\'hi \&quot;x\&quot;\')`)
}

func TestFormatFencedBlockDefaultLanguage(t *testing.T) {
	out := Format("```\nx := 1\n```")
	assert.Contains(t, out, `<span class="code-language">plain</span>`)
}

func TestCopyPayload(t *testing.T) {
	assert.Equal(t, `it\'s \&quot;ok\&quot;`, CopyPayload(`it's "ok"`))
}

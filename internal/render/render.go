// Package render 把会话渲染为 HTML 片段。完整重建与单条追加使用同一套模板，输出一致。
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"chat-widget-go/internal/category"
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/transcript"
	"chat-widget-go/pkg/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options 是渲染器的展示配置。
type Options struct {
	AssistantName string
	LogoURL       string
	PageSize      int
	// BasePath 是组件 API 的前缀，用于生成表格分页、图表和导出链接
	BasePath string
}

// Renderer 负责会话与表格区块的 HTML 渲染。
type Renderer struct {
	opts      Options
	tmpl      *template.Template
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewRenderer 解析内嵌模板并创建渲染器。
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.AssistantName == "" {
		opts.AssistantName = "JIA"
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}
	return &Renderer{
		opts:      opts,
		tmpl:      tmpl,
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
		style:     style,
	}, nil
}

type transcriptView struct {
	TranscriptID  string
	Items         []itemView
	Loading       bool
	LogoURL       string
	AssistantName string
}

type itemView struct {
	Message *messageView
	Table   *TableView
}

type attachmentView struct {
	Name string
	Icon string
	Href string
}

type messageView struct {
	ID          string
	Class       string
	IsUser      bool
	SenderLabel string
	LogoURL     string
	Body        template.HTML
	Attachments []attachmentView
	ShowMenu    bool
	Menu        []category.Option
	Timestamp   string
	Sources     *model.Sources
}

type codeView struct {
	Language    string
	Code        string
	Highlighted template.HTML
}

// RenderTranscript 重建整个会话的 HTML。columns 为列偏好，作用于所有表格区块。
// 会话处于等待状态时在末尾追加占位消息。
func (r *Renderer) RenderTranscript(sess *transcript.Session, columns []string) (string, error) {
	msgs := sess.Transcript.Messages()
	view := transcriptView{
		TranscriptID:  sess.Transcript.ID(),
		Items:         make([]itemView, 0, len(msgs)),
		Loading:       sess.Loading,
		LogoURL:       r.opts.LogoURL,
		AssistantName: r.opts.AssistantName,
	}
	for i, msg := range msgs {
		item, err := r.item(msg, i, columns)
		if err != nil {
			return "", err
		}
		view.Items = append(view.Items, item)
	}
	return r.execute("transcript", view)
}

// RenderMessage 渲染下标为 index 的单条消息，用于增量追加。
// 输出与 RenderTranscript 中对应的片段相同。
func (r *Renderer) RenderMessage(msg model.Message, index int, columns []string) (string, error) {
	item, err := r.item(msg, index, columns)
	if err != nil {
		return "", err
	}
	return r.execute("item", item)
}

// RenderLoading 渲染等待后端响应时的占位消息。
func (r *Renderer) RenderLoading() (string, error) {
	return r.execute("loading", transcriptView{LogoURL: r.opts.LogoURL, AssistantName: r.opts.AssistantName})
}

// RenderTable 渲染一个表格区块（翻页、搜索、切换图表时使用）。
func (r *Renderer) RenderTable(msg model.Message, columns []string, q TableQuery) (string, error) {
	if !msg.IsTabular() {
		return "", ErrNotTabular
	}
	view := BuildTableView(msg, columns, q, r.opts.PageSize, r.opts.BasePath)
	return r.execute("table-block", view)
}

func (r *Renderer) item(msg model.Message, index int, columns []string) (itemView, error) {
	if msg.IsTabular() {
		view := BuildTableView(msg, columns, TableQuery{Page: 1}, r.opts.PageSize, r.opts.BasePath)
		return itemView{Table: &view}, nil
	}
	view, err := r.message(msg, index)
	if err != nil {
		return itemView{}, err
	}
	return itemView{Message: view}, nil
}

func (r *Renderer) message(msg model.Message, index int) (*messageView, error) {
	view := &messageView{
		ID:        msg.ID,
		Class:     string(msg.Sender),
		IsUser:    msg.IsUser(),
		LogoURL:   r.opts.LogoURL,
		Timestamp: msg.Timestamp,
	}
	if view.IsUser {
		view.SenderLabel = "You"
	} else {
		view.SenderLabel = r.opts.AssistantName
		view.Sources = msg.Sources
		if index == 0 || msg.ShowMenu {
			view.ShowMenu = true
			view.Menu = category.Menu
		}
	}
	for _, a := range msg.Attachments {
		view.Attachments = append(view.Attachments, attachmentView{
			Name: a.Name,
			Icon: a.Icon(),
			Href: r.opts.BasePath + "/attachments/" + a.ID,
		})
	}

	body, err := r.body(msg)
	if err != nil {
		return nil, err
	}
	view.Body = body
	return view, nil
}

// body 渲染消息正文。用户输入先做 HTML 转义再展开 markdown；助手内容来自受信任的后端。
func (r *Renderer) body(msg model.Message) (template.HTML, error) {
	text := msg.Body.Text
	if msg.IsUser() {
		text = html.EscapeString(text)
	}
	out := markdown.Format(text)
	if msg.Body.Kind != model.BodyCode {
		return template.HTML(out), nil
	}
	block, err := r.execute("code", codeView{
		Language:    msg.Body.Language,
		Code:        msg.Body.Code,
		Highlighted: r.highlight(msg.Body.Code, msg.Body.Language),
	})
	if err != nil {
		return "", err
	}
	return template.HTML(out + block), nil
}

// highlight 用 chroma 生成带内联样式的代码块，失败时退回转义后的纯文本。
func (r *Renderer) highlight(code, language string) template.HTML {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err == nil {
		var buf bytes.Buffer
		if err = r.formatter.Format(&buf, r.style, iterator); err == nil {
			return template.HTML(buf.String())
		}
	}
	return template.HTML("<pre><code>" + html.EscapeString(code) + "</code></pre>")
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var sb strings.Builder
	if err := r.tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return sb.String(), nil
}

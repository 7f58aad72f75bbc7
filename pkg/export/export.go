// Package export 把表格响应导出为电子表格、PDF 或可打印页面。
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Format 是导出格式。
type Format string

const (
	FormatXLSX  Format = "xlsx"
	FormatPDF   Format = "pdf"
	FormatPrint Format = "print"
)

var (
	// ErrUnavailable 表示导出能力加载失败或执行失败，需要向用户展示失败提示。
	ErrUnavailable = errors.New("export unavailable")
	// ErrUnsupportedFormat 表示请求了未注册的导出格式。
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ParseFormat 解析导出格式。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatXLSX, FormatPDF, FormatPrint:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Document 是一次导出的输入：当前展示（已按搜索过滤）的表格和可选的图表图片。
type Document struct {
	Columns     []string
	Rows        [][]string
	ChartPNG    []byte
	GeneratedAt time.Time
}

// HasChart 表示是否需要输出图表部分。
func (d *Document) HasChart() bool {
	return len(d.ChartPNG) > 0
}

// Artifact 是导出结果。Inline 为 true 时浏览器直接打开而不是下载。
type Artifact struct {
	FileName    string
	ContentType string
	Data        []byte
	Inline      bool
}

// Exporter 定义了一种导出格式的实现。
type Exporter interface {
	Export(ctx context.Context, doc *Document) (*Artifact, error)
}

// Loader 初始化一个导出器，在第一次导出时才被调用。
type Loader func() (Exporter, error)

// Lazy 是按需加载的导出器：第一次使用时调用 Loader，成功后复用；失败时下次重新加载。
type Lazy struct {
	mu       sync.Mutex
	load     Loader
	exporter Exporter
}

// NewLazy 用给定的加载函数创建按需加载的导出器。
func NewLazy(load Loader) *Lazy {
	return &Lazy{load: load}
}

func (l *Lazy) get() (Exporter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.exporter != nil {
		return l.exporter, nil
	}
	e, err := l.load()
	if err != nil {
		return nil, err
	}
	l.exporter = e
	return e, nil
}

// Loaded 表示导出器是否已经加载。
func (l *Lazy) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exporter != nil
}

func (l *Lazy) Export(ctx context.Context, doc *Document) (*Artifact, error) {
	e, err := l.get()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrUnavailable, err)
	}
	return e.Export(ctx, doc)
}

// Registry 按格式保存导出器。
type Registry struct {
	exporters map[Format]Exporter
}

// NewRegistry 创建一个注册了全部内置格式的注册表，每种格式都按需加载。
func NewRegistry() *Registry {
	r := &Registry{exporters: make(map[Format]Exporter)}
	r.Register(FormatXLSX, NewLazy(LoadSpreadsheet))
	r.Register(FormatPDF, NewLazy(LoadPDF))
	r.Register(FormatPrint, NewLazy(LoadPrint))
	return r
}

// Register 注册或替换某种格式的导出器。
func (r *Registry) Register(f Format, e Exporter) {
	r.exporters[f] = e
}

// Export 使用对应格式的导出器生成文件。任何失败都包装为 ErrUnavailable。
func (r *Registry) Export(ctx context.Context, f Format, doc *Document) (*Artifact, error) {
	e, ok := r.exporters[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}
	artifact, err := e.Export(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, f, err)
	}
	return artifact, nil
}

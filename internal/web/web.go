// Package web 内嵌了组件页面模板和静态资源。
package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// PageData 是组件页面的模板数据。
type PageData struct {
	AssistantName string
	LogoURL       string
	// BasePath 是组件 API 前缀，WSPath 是实时推送的 websocket 地址
	BasePath   string
	WSPath     string
	Transcript template.HTML
}

// RenderPage 输出完整的组件页面，Transcript 为已渲染的对话。
func RenderPage(w io.Writer, data PageData) error {
	return pageTemplate.Execute(w, data)
}

// Static 返回 /static 下的静态资源文件系统。
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

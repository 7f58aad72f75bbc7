// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"bytes"
	"chat-widget-go/internal/category"
	"chat-widget-go/internal/middleware"
	"chat-widget-go/internal/render"
	"chat-widget-go/internal/service"
	"chat-widget-go/internal/web"
	"chat-widget-go/pkg/chart"
	"chat-widget-go/pkg/export"
	"chat-widget-go/pkg/log"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ContinueSessionCookie 为 "true" 时页面加载会从后端恢复历史记录。
const ContinueSessionCookie = "continue_session"

// maxAttachmentSize 是单个附件的大小上限。
const maxAttachmentSize = 20 << 20

var exportFailureMessages = map[export.Format]string{
	export.FormatXLSX:  "Excel export failed. Please try again.",
	export.FormatPDF:   "PDF export failed. Please try again.",
	export.FormatPrint: "Print failed. Please try again.",
}

// WidgetHandler 负责组件页面和组件 API。
type WidgetHandler struct {
	chatService   service.ChatService
	tableService  service.TableService
	renderer      *render.Renderer
	page          web.PageData
	secureCookies bool
}

// NewWidgetHandler 创建一个新的 WidgetHandler。page 中除 Transcript 外的字段在每次请求中复用。
func NewWidgetHandler(chatService service.ChatService, tableService service.TableService, renderer *render.Renderer, page web.PageData, secureCookies bool) *WidgetHandler {
	return &WidgetHandler{
		chatService:   chatService,
		tableService:  tableService,
		renderer:      renderer,
		page:          page,
		secureCookies: secureCookies,
	}
}

func columnsOf(c *gin.Context) []string {
	return render.ColumnPreferenceFromHeader(c.GetHeader("Cookie"))
}

func success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// respondTranscript 返回当前完整的对话 HTML，页面用它整体替换对话区域。
func (h *WidgetHandler) respondTranscript(c *gin.Context) {
	sess, err := h.chatService.Session(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		log.Errorf("读取会话失败: %v", err)
		fail(c, http.StatusInternalServerError, "无法读取会话")
		return
	}
	html, err := h.renderer.RenderTranscript(sess, columnsOf(c))
	if err != nil {
		log.Errorf("渲染对话失败: %v", err)
		fail(c, http.StatusInternalServerError, "无法渲染对话")
		return
	}
	success(c, gin.H{"html": html, "transcriptId": sess.Transcript.ID(), "loading": sess.Loading})
}

// Page 渲染组件页面，并根据 continue_session Cookie 决定是否恢复历史。
func (h *WidgetHandler) Page(c *gin.Context) {
	continueSession, _ := c.Cookie(ContinueSessionCookie)
	sess, err := h.chatService.Bootstrap(c.Request.Context(), middleware.SessionID(c), continueSession == "true")
	if err != nil {
		log.Errorf("初始化会话失败: %v", err)
		c.String(http.StatusInternalServerError, "failed to start chat session")
		return
	}
	html, err := h.renderer.RenderTranscript(sess, columnsOf(c))
	if err != nil {
		log.Errorf("渲染对话失败: %v", err)
		c.String(http.StatusInternalServerError, "failed to render chat")
		return
	}

	data := h.page
	data.Transcript = template.HTML(html)
	var buf bytes.Buffer
	if err := web.RenderPage(&buf, data); err != nil {
		log.Errorf("渲染页面失败: %v", err)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *WidgetHandler) Transcript(c *gin.Context) {
	h.respondTranscript(c)
}

// Send 发送用户消息，等待后端响应后返回更新后的对话。
func (h *WidgetHandler) Send(c *gin.Context) {
	err := h.chatService.SendMessage(c.Request.Context(), middleware.SessionID(c), c.PostForm("message"))
	if errors.Is(err, service.ErrRequestInFlight) {
		fail(c, http.StatusConflict, "上一条消息仍在处理中")
		return
	}
	if err != nil {
		log.Errorf("发送消息失败: %v", err)
		fail(c, http.StatusInternalServerError, "发送消息失败")
		return
	}
	h.respondTranscript(c)
}

func (h *WidgetHandler) SelectCategory(c *gin.Context) {
	err := h.chatService.SelectCategory(c.Request.Context(), middleware.SessionID(c), c.PostForm("id"))
	if errors.Is(err, category.ErrUnknownCategory) {
		fail(c, http.StatusBadRequest, "未知的分类")
		return
	}
	if err != nil {
		log.Errorf("选择分类失败: %v", err)
		fail(c, http.StatusInternalServerError, "选择分类失败")
		return
	}
	h.respondTranscript(c)
}

func (h *WidgetHandler) ShowMenu(c *gin.Context) {
	h.mutate(c, h.chatService.ShowCategories)
}

func (h *WidgetHandler) Clear(c *gin.Context) {
	h.mutate(c, h.chatService.Clear)
}

func (h *WidgetHandler) NewChat(c *gin.Context) {
	h.mutate(c, h.chatService.NewChat)
}

func (h *WidgetHandler) mutate(c *gin.Context, op func(ctx context.Context, sessionID string) error) {
	if err := op(c.Request.Context(), middleware.SessionID(c)); err != nil {
		log.Errorf("更新会话失败: path=%s, err=%v", c.FullPath(), err)
		fail(c, http.StatusInternalServerError, "操作失败")
		return
	}
	h.respondTranscript(c)
}

// AddAttachments 接收 multipart 表单中的 files 字段，加入待发送附件。
func (h *WidgetHandler) AddAttachments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		fail(c, http.StatusBadRequest, "无效的上传表单")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		fail(c, http.StatusBadRequest, "没有选择文件")
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxAttachmentSize {
			fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("文件 %s 超过大小限制", fh.Filename))
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, http.StatusBadRequest, "无法读取上传的文件")
			return
		}
		defer f.Close()
		uploads = append(uploads, service.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
	}

	attachments, err := h.chatService.AddAttachments(c.Request.Context(), middleware.SessionID(c), uploads)
	if err != nil {
		log.Errorf("保存附件失败: %v", err)
		fail(c, http.StatusInternalServerError, "保存附件失败")
		return
	}
	success(c, gin.H{"attachments": attachments})
}

func (h *WidgetHandler) ClearAttachments(c *gin.Context) {
	if err := h.chatService.ClearAttachments(c.Request.Context(), middleware.SessionID(c)); err != nil {
		log.Errorf("清除附件失败: %v", err)
		fail(c, http.StatusInternalServerError, "清除附件失败")
		return
	}
	success(c, nil)
}

// Attachment 重定向到附件的临时下载地址。
func (h *WidgetHandler) Attachment(c *gin.Context) {
	url, err := h.chatService.AttachmentURL(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if errors.Is(err, service.ErrAttachmentNotFound) {
		fail(c, http.StatusNotFound, "附件不存在")
		return
	}
	if err != nil {
		log.Errorf("生成附件地址失败: %v", err)
		fail(c, http.StatusInternalServerError, "无法下载附件")
		return
	}
	c.Redirect(http.StatusFound, url)
}

func tableQuery(c *gin.Context) render.TableQuery {
	return render.ParseTableQuery(c.Query("page"), c.Query("q"), c.Query("chart"))
}

func (h *WidgetHandler) blockError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMessageNotFound):
		fail(c, http.StatusNotFound, "消息不存在")
	case errors.Is(err, render.ErrNotTabular):
		fail(c, http.StatusBadRequest, "该消息不是表格")
	case errors.Is(err, chart.ErrEmptyChart):
		fail(c, http.StatusNotFound, "没有图表数据")
	default:
		log.Errorf("处理表格区块失败: path=%s, err=%v", c.Request.URL.Path, err)
		fail(c, http.StatusInternalServerError, "处理表格失败")
	}
}

// Block 返回表格区块片段，用于翻页和搜索。
func (h *WidgetHandler) Block(c *gin.Context) {
	html, err := h.tableService.Block(c.Request.Context(), middleware.SessionID(c), c.Param("id"), columnsOf(c), tableQuery(c))
	if err != nil {
		h.blockError(c, err)
		return
	}
	success(c, gin.H{"html": html})
}

func (h *WidgetHandler) Chart(c *gin.Context) {
	png, err := h.tableService.Chart(c.Request.Context(), middleware.SessionID(c), c.Param("id"), chart.ParseType(c.Query("chart")))
	if err != nil {
		h.blockError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// Export 生成导出文件。导出器加载或执行失败时返回 503 和可展示给用户的提示。
func (h *WidgetHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, "不支持的导出格式")
		return
	}
	artifact, err := h.tableService.Export(c.Request.Context(), middleware.SessionID(c), c.Param("id"), format, columnsOf(c), tableQuery(c))
	switch {
	case errors.Is(err, service.ErrNoExportData):
		fail(c, http.StatusUnprocessableEntity, "No data available for export.")
		return
	case errors.Is(err, export.ErrUnavailable):
		log.Errorf("导出失败: format=%s, err=%v", format, err)
		fail(c, http.StatusServiceUnavailable, exportFailureMessages[format])
		return
	case err != nil:
		h.blockError(c, err)
		return
	}

	disposition := "attachment"
	if artifact.Inline {
		disposition = "inline"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, artifact.FileName))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// SetColumns 保存表格列偏好。Cookie 值使用带引号、\054 分隔的格式，net/http 的 SetCookie 会丢弃反斜杠，这里直接写响应头。
func (h *WidgetHandler) SetColumns(c *gin.Context) {
	var columns []string
	for _, v := range c.PostFormArray("columns") {
		for _, col := range strings.Split(v, ",") {
			if col = strings.TrimSpace(col); col != "" {
				columns = append(columns, col)
			}
		}
	}
	cookie := render.ColumnsCookie + "=" + render.EncodeColumnPreference(columns) + "; Path=/; SameSite=Lax"
	if len(columns) == 0 {
		cookie = render.ColumnsCookie + "=; Path=/; Max-Age=0; SameSite=Lax"
	} else {
		cookie += "; Max-Age=" + strconv.Itoa(int((365 * 24 * time.Hour).Seconds()))
	}
	c.Writer.Header().Add("Set-Cookie", cookie)
	success(c, gin.H{"columns": columns})
}

// SetContinue 打开或关闭页面加载时恢复历史记录。
func (h *WidgetHandler) SetContinue(c *gin.Context) {
	enabled := c.PostForm("enabled") == "true"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ContinueSessionCookie, strconv.FormatBool(enabled), int((365 * 24 * time.Hour).Seconds()), "/", "", h.secureCookies, false)
	success(c, gin.H{"enabled": enabled})
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget-go/internal/middleware"
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/render"
	"chat-widget-go/internal/service"
	"chat-widget-go/internal/transcript"
	"chat-widget-go/internal/web"
	"chat-widget-go/pkg/chart"
	"chat-widget-go/pkg/export"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChatService struct {
	sess          *transcript.Session
	sendErr       error
	sent          []string
	bootstrapFlag bool
}

func newStubChatService() *stubChatService {
	return &stubChatService{sess: transcript.NewSession("sid", "Hello from JIA", time.Now())}
}

func (s *stubChatService) Session(context.Context, string) (*transcript.Session, error) {
	return s.sess, nil
}

func (s *stubChatService) Bootstrap(_ context.Context, _ string, continueSession bool) (*transcript.Session, error) {
	s.bootstrapFlag = continueSession
	return s.sess, nil
}

func (s *stubChatService) SendMessage(_ context.Context, _ string, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	s.sess.Transcript.Append(model.NewUserMessage(text, nil, time.Now()))
	return nil
}

func (s *stubChatService) SelectCategory(context.Context, string, string) error { return nil }
func (s *stubChatService) ShowCategories(context.Context, string) error         { return nil }
func (s *stubChatService) Clear(context.Context, string) error                  { return nil }
func (s *stubChatService) NewChat(context.Context, string) error                { return nil }
func (s *stubChatService) ClearAttachments(context.Context, string) error       { return nil }

func (s *stubChatService) AddAttachments(context.Context, string, []service.Upload) ([]model.Attachment, error) {
	return nil, nil
}

func (s *stubChatService) AttachmentURL(context.Context, string, string) (string, error) {
	return "", service.ErrAttachmentNotFound
}

func (s *stubChatService) Message(context.Context, string, string) (model.Message, error) {
	return model.Message{}, service.ErrMessageNotFound
}

type stubTableService struct {
	exportErr error
	columns   []string
}

func (s *stubTableService) Block(context.Context, string, string, []string, render.TableQuery) (string, error) {
	return "<div></div>", nil
}

func (s *stubTableService) Chart(context.Context, string, string, chart.Type) ([]byte, error) {
	return nil, chart.ErrEmptyChart
}

func (s *stubTableService) Export(_ context.Context, _, _ string, f export.Format, columns []string, _ render.TableQuery) (*export.Artifact, error) {
	s.columns = columns
	if s.exportErr != nil {
		return nil, s.exportErr
	}
	return &export.Artifact{FileName: "data-export.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, nil
}

func newTestRouter(t *testing.T, chat *stubChatService, table *stubTableService) *gin.Engine {
	t.Helper()
	renderer, err := render.NewRenderer(render.Options{BasePath: "/api/v1/widget"})
	require.NoError(t, err)
	h := NewWidgetHandler(chat, table, renderer, web.PageData{AssistantName: "JIA", BasePath: "/api/v1/widget"}, false)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.SessionIDKey, "sid") })
	r.GET("/", h.Page)
	api := r.Group("/api/v1/widget")
	api.POST("/send", h.Send)
	api.POST("/columns", h.SetColumns)
	api.GET("/blocks/:id/chart.png", h.Chart)
	api.GET("/blocks/:id/export/:format", h.Export)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPageBootstrapsFromCookie(t *testing.T) {
	chat := newStubChatService()
	r := newTestRouter(t, chat, &stubTableService{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ContinueSessionCookie, Value: "true"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, chat.bootstrapFlag)
	assert.Contains(t, w.Body.String(), `id="messages-container"`)
	assert.Contains(t, w.Body.String(), "Hello from JIA")
}

func TestSend(t *testing.T) {
	chat := newStubChatService()
	r := newTestRouter(t, chat, &stubTableService{})

	form := url.Values{"message": {"<b>hi</b>"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"<b>hi</b>"}, chat.sent)
	html := decode(t, w)["data"].(map[string]interface{})["html"].(string)
	assert.Contains(t, html, "&lt;b&gt;hi&lt;/b&gt;")
}

func TestSendWhileInFlight(t *testing.T) {
	chat := newStubChatService()
	chat.sendErr = service.ErrRequestInFlight
	r := newTestRouter(t, chat, &stubTableService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/send", strings.NewReader("message=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetColumnsWritesRawCookie(t *testing.T) {
	r := newTestRouter(t, newStubChatService(), &stubTableService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/columns", strings.NewReader("columns=c,a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	header := w.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(header, `columns="c\054a";`), header)

	value := strings.SplitN(header, ";", 2)[0]
	assert.Equal(t, []string{"c", "a"}, render.ColumnPreferenceFromHeader(value))
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		err     error
		status  int
		message string
	}{
		{name: "ok", format: "pdf", status: http.StatusOK},
		{name: "unknown format", format: "docx", status: http.StatusBadRequest},
		{name: "unavailable", format: "xlsx", err: fmt.Errorf("%w: boom", export.ErrUnavailable), status: http.StatusServiceUnavailable, message: "Excel export failed. Please try again."},
		{name: "no rows", format: "print", err: service.ErrNoExportData, status: http.StatusUnprocessableEntity, message: "No data available for export."},
		{name: "missing message", format: "pdf", err: service.ErrMessageNotFound, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &stubTableService{exportErr: tt.err}
			r := newTestRouter(t, newStubChatService(), table)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/widget/blocks/m1/export/"+tt.format, nil)
			req.Header.Set("Cookie", `columns="b\054a"`)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, `attachment; filename="data-export.pdf"`, w.Header().Get("Content-Disposition"))
				assert.Equal(t, []string{"b", "a"}, table.columns)
				return
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, w)["message"])
			}
		})
	}
}

func TestChartWithoutData(t *testing.T) {
	r := newTestRouter(t, newStubChatService(), &stubTableService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/widget/blocks/m1/chart.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

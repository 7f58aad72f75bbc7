// Package backend 提供了访问问答后端（/get-response、/set-category、/get-chat-history）的客户端。
package backend

import (
	"chat-widget-go/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// ErrStatus 表示后端返回了非 2xx 状态码。
var ErrStatus = errors.New("backend returned non-success status")

// File 是随问题一起发送的附件。Content 由调用方负责关闭。
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// ResponseRequest 是一次 /get-response 请求的内容。
type ResponseRequest struct {
	Message        string
	Category       string
	ConversationID string
	Files          []File
}

// History 是 /get-chat-history 的响应。Items 保持原始 JSON，由 model.DecodeHistory 解析。
type History struct {
	Status string            `json:"status"`
	Items  []json.RawMessage `json:"history"`
}

// Client 定义了问答后端的调用接口。
type Client interface {
	// GetResponse 发送问题和附件，返回原始响应体。传输失败或非 2xx 时返回错误。
	GetResponse(ctx context.Context, req ResponseRequest) ([]byte, error)
	// SetCategory 通知后端当前分类。
	SetCategory(ctx context.Context, category string) error
	// GetHistory 读取会话的历史记录。
	GetHistory(ctx context.Context, sessionID string) (*History, error)
}

type httpClient struct {
	cfg    config.BackendConfig
	client *http.Client
}

// NewClient 创建后端客户端。超时由配置决定，调用方不再额外设置。
func NewClient(cfg config.BackendConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpClient) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

func (c *httpClient) GetResponse(ctx context.Context, r ResponseRequest) ([]byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// 附件可能较大，边读边写入请求体
	go func() {
		pw.CloseWithError(writeForm(mw, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.ResponsePath), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create response request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s, body: %s", ErrStatus, resp.Status, truncate(body, 512))
	}
	return body, nil
}

func writeForm(mw *multipart.Writer, r ResponseRequest) error {
	fields := [][2]string{
		{"message", r.Message},
		{"category", r.Category},
		{"conversation_id", r.ConversationID},
	}
	for _, f := range fields {
		if f[1] == "" && f[0] != "message" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	for _, file := range r.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(file.Name)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return fmt.Errorf("failed to stream attachment %s: %w", file.Name, err)
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *httpClient) SetCategory(ctx context.Context, category string) error {
	form := url.Values{"category": {category}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.cfg.CategoryPath), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create category request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return nil
}

func (c *httpClient) GetHistory(ctx context.Context, sessionID string) (*History, error) {
	target := c.url(c.cfg.HistoryPath)
	if sessionID != "" {
		target += "?" + url.Values{"session_id": {sessionID}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	var history History
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	return &history, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

package handler

import (
	"chat-widget-go/internal/service"
	"chat-widget-go/pkg/log"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理管理端查看归档对话的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListExchanges 分页列出归档记录；带 transcriptId 参数时返回该对话的全部记录。
func (h *AdminHandler) ListExchanges(c *gin.Context) {
	if transcriptID := c.Query("transcriptId"); transcriptID != "" {
		exchanges, err := h.adminService.TranscriptExchanges(transcriptID)
		if err != nil {
			log.Errorf("查询对话归档失败: %v", err)
			fail(c, http.StatusInternalServerError, "查询归档失败")
			return
		}
		success(c, exchanges)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	resp, err := h.adminService.ListExchanges(page, size)
	if err != nil {
		log.Errorf("分页查询归档失败: %v", err)
		fail(c, http.StatusInternalServerError, "查询归档失败")
		return
	}
	success(c, resp)
}

// SearchExchanges 在归档的问答中做全文检索。
func (h *AdminHandler) SearchExchanges(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	hits, err := h.adminService.SearchExchanges(c.Request.Context(), c.Query("q"), size)
	if errors.Is(err, service.ErrSearchUnavailable) {
		fail(c, http.StatusServiceUnavailable, "检索服务不可用")
		return
	}
	if err != nil {
		log.Errorf("检索归档失败: %v", err)
		fail(c, http.StatusInternalServerError, "检索归档失败")
		return
	}
	success(c, hits)
}

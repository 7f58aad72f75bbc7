package service

import (
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/repository"
	"chat-widget-go/pkg/es"
	"context"
	"errors"
	"strings"
)

// ErrSearchUnavailable 表示没有可用的检索索引（Elasticsearch 初始化失败时）。
var ErrSearchUnavailable = errors.New("exchange search is unavailable")

// ExchangeListResponse 定义了归档列表 API 的响应结构。
type ExchangeListResponse struct {
	Content       []model.ArchivedExchange `json:"content"`
	TotalElements int64                    `json:"totalElements"`
	TotalPages    int                      `json:"totalPages"`
	Size          int                      `json:"size"`
	Number        int                      `json:"number"`
}

// AdminService 接口定义了管理端查看归档对话的操作。
type AdminService interface {
	ListExchanges(page, size int) (*ExchangeListResponse, error)
	TranscriptExchanges(transcriptID string) ([]model.ArchivedExchange, error)
	SearchExchanges(ctx context.Context, query string, size int) ([]model.ExchangeSearchHit, error)
}

type adminService struct {
	archiveRepo repository.ArchiveRepository
	index       es.ExchangeIndex
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(archiveRepo repository.ArchiveRepository, index es.ExchangeIndex) AdminService {
	return &adminService{archiveRepo: archiveRepo, index: index}
}

// ListExchanges 以分页的形式返回归档记录，page 从 1 开始。
func (s *adminService) ListExchanges(page, size int) (*ExchangeListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	exchanges, total, err := s.archiveRepo.FindWithPagination((page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return &ExchangeListResponse{
		Content:       exchanges,
		TotalElements: total,
		TotalPages:    int((total + int64(size) - 1) / int64(size)),
		Size:          size,
		Number:        page,
	}, nil
}

func (s *adminService) TranscriptExchanges(transcriptID string) ([]model.ArchivedExchange, error) {
	if strings.TrimSpace(transcriptID) == "" {
		return nil, errors.New("transcriptId 不能为空")
	}
	return s.archiveRepo.FindByTranscript(transcriptID)
}

func (s *adminService) SearchExchanges(ctx context.Context, query string, size int) ([]model.ExchangeSearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.ExchangeSearchHit{}, nil
	}
	if s.index == nil {
		return nil, ErrSearchUnavailable
	}
	return s.index.Search(ctx, query, size)
}

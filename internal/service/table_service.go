package service

import (
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/render"
	"chat-widget-go/pkg/chart"
	"chat-widget-go/pkg/export"
	"chat-widget-go/pkg/log"
	"context"
	"errors"
	"time"
)

// ErrNoExportData 表示当前搜索结果为空，没有可导出的行。
var ErrNoExportData = errors.New("no data available for export")

// DocumentExporter 按格式生成导出文件，export.Registry 实现了该接口。
type DocumentExporter interface {
	Export(ctx context.Context, f export.Format, doc *export.Document) (*export.Artifact, error)
}

// TableService 处理表格区块的翻页、搜索、图表和导出。
type TableService interface {
	Block(ctx context.Context, sessionID, messageID string, columns []string, q render.TableQuery) (string, error)
	Chart(ctx context.Context, sessionID, messageID string, t chart.Type) ([]byte, error)
	Export(ctx context.Context, sessionID, messageID string, f export.Format, columns []string, q render.TableQuery) (*export.Artifact, error)
}

type tableService struct {
	chatService ChatService
	renderer    *render.Renderer
	exporter    DocumentExporter
	now         func() time.Time
}

// NewTableService 创建一个新的 TableService 实例。
func NewTableService(chatService ChatService, renderer *render.Renderer, exporter DocumentExporter) TableService {
	return &tableService{
		chatService: chatService,
		renderer:    renderer,
		exporter:    exporter,
		now:         time.Now,
	}
}

func (s *tableService) tabular(ctx context.Context, sessionID, messageID string) (model.Message, error) {
	msg, err := s.chatService.Message(ctx, sessionID, messageID)
	if err != nil {
		return model.Message{}, err
	}
	if !msg.IsTabular() {
		return model.Message{}, render.ErrNotTabular
	}
	return msg, nil
}

func (s *tableService) Block(ctx context.Context, sessionID, messageID string, columns []string, q render.TableQuery) (string, error) {
	msg, err := s.tabular(ctx, sessionID, messageID)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderTable(msg, columns, q)
}

// Chart 渲染表格区块的图表图片。消息没有图表数据时返回 chart.ErrEmptyChart。
func (s *tableService) Chart(ctx context.Context, sessionID, messageID string, t chart.Type) ([]byte, error) {
	msg, err := s.tabular(ctx, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	data := msg.Body.Table.Chart
	if data == nil {
		return nil, chart.ErrEmptyChart
	}
	return chart.PNG(t, data.Labels, data.Values)
}

// Export 导出当前可见列和搜索结果（所有页）。图表按当前选中的类型嵌入，渲染失败时省略图表。
func (s *tableService) Export(ctx context.Context, sessionID, messageID string, f export.Format, columns []string, q render.TableQuery) (*export.Artifact, error) {
	msg, err := s.tabular(ctx, sessionID, messageID)
	if err != nil {
		return nil, err
	}
	payload := msg.Body.Table
	selected := render.SelectColumns(payload.Columns, columns)
	doc := &export.Document{
		Columns:     selected,
		Rows:        render.FilterRows(payload, selected, q.Search),
		GeneratedAt: s.now(),
	}
	if len(doc.Rows) == 0 {
		return nil, ErrNoExportData
	}
	if payload.Chart != nil {
		png, err := chart.PNG(q.Chart, payload.Chart.Labels, payload.Chart.Values)
		switch {
		case err == nil:
			doc.ChartPNG = png
		case errors.Is(err, chart.ErrEmptyChart):
		default:
			log.Warnf("导出时渲染图表失败，省略图表: message=%s, err=%v", messageID, err)
		}
	}
	return s.exporter.Export(ctx, f, doc)
}

package render

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"chat-widget-go/internal/model"
	"chat-widget-go/pkg/chart"
)

// ErrNotTabular 表示消息不是表格区块。
var ErrNotTabular = errors.New("message is not tabular")

// TableQuery 是表格区块的视图状态：页码、搜索词和当前图表类型。
type TableQuery struct {
	Page   int
	Search string
	Chart  chart.Type
}

// ParseTableQuery 从请求参数中解析视图状态，非法的页码按第一页处理。
func ParseTableQuery(page, search, chartType string) TableQuery {
	p, err := strconv.Atoi(page)
	if err != nil || p < 1 {
		p = 1
	}
	return TableQuery{Page: p, Search: strings.TrimSpace(search), Chart: chart.ParseType(chartType)}
}

type chartOption struct {
	Value    chart.Type
	Title    string
	Selected bool
}

// TableView 是表格区块的模板数据。
type TableView struct {
	BlockID   string
	Columns   []string
	Rows      [][]string
	Total     int
	Filtered  int
	Page      int
	Pages     int
	Search    string
	ChartType chart.Type
	HasChart  bool
	Sources   *model.Sources

	basePath string
	pageSize int
}

// BuildTableView 计算某个表格区块在给定视图状态下的展示内容。
func BuildTableView(msg model.Message, columns []string, q TableQuery, pageSize int, basePath string) TableView {
	payload := msg.Body.Table
	selected := SelectColumns(payload.Columns, columns)
	rows := FilterRows(payload, selected, q.Search)

	pages := (len(rows) + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(rows))

	chartType := q.Chart
	if chartType == "" {
		chartType = chart.Types[0]
	}
	return TableView{
		BlockID:   msg.ID,
		Columns:   selected,
		Rows:      rows[start:end],
		Total:     len(payload.Rows),
		Filtered:  len(rows),
		Page:      page,
		Pages:     pages,
		Search:    q.Search,
		ChartType: chartType,
		HasChart:  payload.Chart != nil,
		Sources:   msg.Sources,
		basePath:  basePath,
		pageSize:  pageSize,
	}
}

// FilterRows 返回所选列的单元格文本，search 非空时只保留任一可见单元格包含该词（不区分大小写）的行。
// 导出使用同一函数，因此导出的内容与当前展示的搜索结果一致（包含所有页）。
func FilterRows(payload *model.TabularPayload, columns []string, search string) [][]string {
	needle := strings.ToLower(strings.TrimSpace(search))
	rows := make([][]string, 0, len(payload.Rows))
	for i := range payload.Rows {
		cells := make([]string, len(columns))
		match := needle == ""
		for c, col := range columns {
			cells[c] = payload.Cell(i, col)
			if !match && strings.Contains(strings.ToLower(cells[c]), needle) {
				match = true
			}
		}
		if match {
			rows = append(rows, cells)
		}
	}
	return rows
}

func (v TableView) From() int {
	if v.Filtered == 0 {
		return 0
	}
	return (v.Page-1)*v.pageSize + 1
}

func (v TableView) To() int {
	return v.From() + len(v.Rows) - 1 + boolToInt(v.Filtered == 0)
}

func (v TableView) HasPrev() bool { return v.Page > 1 }
func (v TableView) HasNext() bool { return v.Page < v.Pages }
func (v TableView) PrevPage() int { return v.Page - 1 }
func (v TableView) NextPage() int { return v.Page + 1 }

// Round 表示饼图和环形图需要额外的样式类。
func (v TableView) Round() bool {
	return v.ChartType == chart.Pie || v.ChartType == chart.Doughnut
}

func (v TableView) ChartOptions() []chartOption {
	opts := make([]chartOption, len(chart.Types))
	for i, t := range chart.Types {
		opts[i] = chartOption{Value: t, Title: t.Title(), Selected: t == v.ChartType}
	}
	return opts
}

// BlockURL 是区块片段的地址，页面脚本在翻页和搜索时请求它。
func (v TableView) BlockURL() string {
	return v.basePath + "/blocks/" + v.BlockID
}

func (v TableView) PageURL(page int) string {
	return v.BlockURL() + "?" + v.query(page).Encode()
}

func (v TableView) ChartURL() string {
	return v.BlockURL() + "/chart.png?" + url.Values{"chart": {string(v.ChartType)}}.Encode()
}

// ExportURL 返回导出链接，携带当前的搜索词和图表类型。
func (v TableView) ExportURL(format string) string {
	q := v.query(0)
	return v.BlockURL() + "/export/" + format + "?" + q.Encode()
}

func (v TableView) query(page int) url.Values {
	q := url.Values{"chart": {string(v.ChartType)}}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if v.Search != "" {
		q.Set("q", v.Search)
	}
	return q
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

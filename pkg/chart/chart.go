// Package chart 把表格响应附带的图表数据渲染为 PNG 图片。
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Type 是图表类型。
type Type string

const (
	Bar      Type = "bar"
	Pie      Type = "pie"
	Line     Type = "line"
	Doughnut Type = "doughnut"
)

// Types 是类型选择器中的选项，第一个为初始类型。
var Types = []Type{Bar, Pie, Line, Doughnut}

// ErrEmptyChart 表示没有可绘制的数据。
var ErrEmptyChart = errors.New("chart has no drawable values")

const (
	defaultWidth  = 640
	defaultHeight = 360
	title         = "Data Visualization"
	noDataLabel   = "No data"
)

var noDataColor = drawing.Color{R: 201, G: 203, B: 207, A: 255}

// palette 与前端原有图表的配色一致。
var palette = []drawing.Color{
	{R: 255, G: 99, B: 132, A: 178},
	{R: 54, G: 162, B: 235, A: 178},
	{R: 255, G: 206, B: 86, A: 178},
	{R: 75, G: 192, B: 192, A: 178},
	{R: 153, G: 102, B: 255, A: 178},
	{R: 255, G: 159, B: 64, A: 178},
}

// ParseType 解析图表类型，无法识别时返回柱状图。
func ParseType(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t
		}
	}
	return Bar
}

// Title 返回选择器中展示的名称。
func (t Type) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Render 按指定类型把标签和数值绘制为 PNG 写入 w。两者长度不一致时按较短的截断。
func Render(w io.Writer, t Type, labels []string, values []float64) error {
	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return ErrEmptyChart
	}
	labels, values = labels[:n], values[:n]

	var err error
	switch ParseType(string(t)) {
	case Pie:
		err = renderPie(w, labels, values, false)
	case Doughnut:
		err = renderPie(w, labels, values, true)
	case Line:
		err = renderLine(w, labels, values)
	default:
		err = renderBar(w, labels, values)
	}
	if err != nil {
		return fmt.Errorf("render %s chart: %w", t, err)
	}
	return nil
}

// PNG 是 Render 的便捷形式，直接返回图片字节。
func PNG(t Type, labels []string, values []float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, t, labels, values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func color(i int) drawing.Color {
	return palette[i%len(palette)]
}

// valueRange 返回包含 0 的 Y 轴范围，避免全部相等时范围为零导致渲染失败。
func valueRange(values []float64) *gochart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

func renderBar(w io.Writer, labels []string, values []float64) error {
	bars := make([]gochart.Value, len(values))
	for i, v := range values {
		bars[i] = gochart.Value{
			Label: labels[i],
			Value: v,
			Style: gochart.Style{FillColor: color(i), StrokeColor: color(i).WithAlpha(255), StrokeWidth: 1},
		}
	}
	bw := barWidth(len(values))
	bc := gochart.BarChart{
		Title:      title,
		Width:      defaultWidth,
		Height:     defaultHeight,
		BarWidth:   bw,
		BarSpacing: bw,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		YAxis: gochart.YAxis{Range: valueRange(values)},
		Bars:  bars,
	}
	return bc.Render(gochart.PNG, w)
}

func barWidth(n int) int {
	width := (defaultWidth - 80) / n / 2
	if width < 4 {
		return 4
	}
	if width > 60 {
		return 60
	}
	return width
}

// renderPie 绘制饼图或环形图。饼图无法表示负数和零，这些扇区会被跳过；
// 没有正数时画一个灰色的 "No data" 占位扇区，切换类型不改变数据。
func renderPie(w io.Writer, labels []string, values []float64, donut bool) error {
	slices := make([]gochart.Value, 0, len(values))
	for i, v := range values {
		if v <= 0 {
			continue
		}
		slices = append(slices, gochart.Value{
			Label: labels[i],
			Value: v,
			Style: gochart.Style{FillColor: color(i), StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}
	if len(slices) == 0 {
		slices = append(slices, gochart.Value{
			Label: noDataLabel,
			Value: 1,
			Style: gochart.Style{FillColor: noDataColor, StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
		})
	}
	if donut {
		dc := gochart.DonutChart{
			Title:  title,
			Width:  defaultHeight,
			Height: defaultHeight,
			Values: slices,
		}
		return dc.Render(gochart.PNG, w)
	}
	pc := gochart.PieChart{
		Title:  title,
		Width:  defaultHeight,
		Height: defaultHeight,
		Values: slices,
	}
	return pc.Render(gochart.PNG, w)
}

// renderLine 绘制折线图。只有一个点时在 x=0 和 x=1 上重复该值，刻度放在中间，
// ContinuousSeries 至少需要两个 X 值。
func renderLine(w io.Writer, labels []string, values []float64) error {
	xs := make([]float64, len(values))
	ticks := make([]gochart.Tick, len(values))
	for i := range values {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: labels[i]}
	}
	xMax := float64(len(values) - 1)
	if len(values) == 1 {
		xs = []float64{0, 1}
		values = []float64{values[0], values[0]}
		ticks = []gochart.Tick{{Value: 0, Label: ""}, {Value: 0.5, Label: labels[0]}, {Value: 1, Label: ""}}
		xMax = 1
	}
	graph := gochart.Chart{
		Title:  title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: gochart.XAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: xMax},
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{Range: valueRange(values)},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Chart Data",
				XValues: xs,
				YValues: values,
				Style: gochart.Style{
					StrokeColor: color(1).WithAlpha(255),
					StrokeWidth: 2,
					DotColor:    color(1).WithAlpha(255),
					DotWidth:    3,
				},
			},
		},
	}
	return graph.Render(gochart.PNG, w)
}

package export

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	spreadsheetFile = "data-with-chart.xlsx"
	spreadsheetType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxColumnWidth  = 50
	chartCaption    = "Chart Visualization:"
)

type spreadsheetExporter struct{}

// LoadSpreadsheet 创建电子表格导出器。加载时先生成一个空工作簿，确认 excelize 可用。
func LoadSpreadsheet() (Exporter, error) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.WriteToBuffer(); err != nil {
		return nil, fmt.Errorf("excelize probe: %w", err)
	}
	return &spreadsheetExporter{}, nil
}

func (e *spreadsheetExporter) Export(ctx context.Context, doc *Document) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	widths := make([]int, len(doc.Columns))
	for i, name := range doc.Columns {
		if err := setCell(f, sheet, i+1, 1, name); err != nil {
			return nil, err
		}
		widths[i] = utf8.RuneCountInString(name)
	}
	if len(doc.Columns) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(doc.Columns), 1)
		if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
			return nil, fmt.Errorf("apply header style: %w", err)
		}
	}

	for r, row := range doc.Rows {
		for c := range doc.Columns {
			value := ""
			if c < len(row) {
				value = row[c]
			}
			if err := setCell(f, sheet, c+1, r+2, value); err != nil {
				return nil, err
			}
			if n := utf8.RuneCountInString(value); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(w+2, maxColumnWidth))); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	showGridLines := false
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &showGridLines}); err != nil {
		return nil, fmt.Errorf("hide gridlines: %w", err)
	}

	if doc.HasChart() {
		captionRow := len(doc.Rows) + 5
		if err := setCell(f, sheet, 1, captionRow, chartCaption); err != nil {
			return nil, err
		}
		anchor, _ := excelize.CoordinatesToCellName(1, captionRow+1)
		if err := f.AddPictureFromBytes(sheet, anchor, &excelize.Picture{
			Extension: ".png",
			File:      doc.ChartPNG,
			Format:    &excelize.GraphicOptions{ScaleX: 1, ScaleY: 1},
		}); err != nil {
			return nil, fmt.Errorf("embed chart image: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &Artifact{FileName: spreadsheetFile, ContentType: spreadsheetType, Data: buf.Bytes()}, nil
}

func setCell(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

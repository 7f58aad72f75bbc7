package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFile       = "data-export.pdf"
	pdfType       = "application/pdf"
	pdfTitle      = "Data Export"
	pdfChartTitle = "Chart Visualization"
	pdfRowHeight  = 7.0
	chartImage    = "chart"
)

type pdfExporter struct{}

// LoadPDF 创建 PDF 导出器。加载时用内置字体生成一页空白文档，确认 fpdf 可用。
func LoadPDF() (Exporter, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 10)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf probe: %w", err)
	}
	return &pdfExporter{}, nil
}

func (e *pdfExporter) Export(ctx context.Context, doc *Document) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orientation := "P"
	if len(doc.Columns) > 6 {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, pdfTitle, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated: "+doc.GeneratedAt.Format("Jan 2, 2006 3:04 PM"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pageW, pageH := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	usable := pageW - left - right

	if len(doc.Columns) > 0 {
		colW := usable / float64(len(doc.Columns))
		header := func() {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.SetFillColor(220, 220, 220)
			for _, name := range doc.Columns {
				pdf.CellFormat(colW, pdfRowHeight, tr(fit(pdf, name, colW)), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Helvetica", "", 9)
		}
		header()
		for _, row := range doc.Rows {
			if pdf.GetY()+pdfRowHeight > pageH-bottom {
				pdf.AddPage()
				header()
			}
			for c := range doc.Columns {
				value := ""
				if c < len(row) {
					value = row[c]
				}
				pdf.CellFormat(colW, pdfRowHeight, tr(fit(pdf, value, colW)), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if doc.HasChart() {
		info := pdf.RegisterImageOptionsReader(chartImage, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(doc.ChartPNG))
		if info != nil {
			imgW := usable
			if imgW > 160 {
				imgW = 160
			}
			imgH := imgW * info.Height() / info.Width()
			if pdf.GetY()+imgH+16 > pageH-bottom {
				pdf.AddPage()
			}
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, pdfChartTitle, "", 1, "L", false, 0, "")
			pdf.ImageOptions(chartImage, left+(usable-imgW)/2, pdf.GetY(), imgW, imgH, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &Artifact{FileName: pdfFile, ContentType: pdfType, Data: buf.Bytes()}, nil
}

// fit 截断超出单元格宽度的文本。
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

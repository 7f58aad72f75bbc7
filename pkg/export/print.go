package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
)

const (
	printFile = "data-print.html"
	printType = "text/html; charset=utf-8"
)

const printTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Data Print</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
.chart-container { text-align: center; page-break-inside: avoid; }
.chart-container img { max-width: 100%; }
</style>
</head>
<body>
<h2>Data Print</h2>
<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{if .Chart}}<div class="chart-container"><h3>Chart Visualization</h3><img src="{{.Chart}}" alt="Chart"></div>{{end}}
<script>window.onload = function () { window.print(); };</script>
</body>
</html>
`

type printExporter struct {
	tmpl *template.Template
}

// LoadPrint 解析打印页模板。
func LoadPrint() (Exporter, error) {
	tmpl, err := template.New("print").Parse(printTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse print template: %w", err)
	}
	return &printExporter{tmpl: tmpl}, nil
}

func (e *printExporter) Export(ctx context.Context, doc *Document) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([][]string, len(doc.Rows))
	for i, row := range doc.Rows {
		cells := make([]string, len(doc.Columns))
		copy(cells, row)
		rows[i] = cells
	}
	data := struct {
		Columns []string
		Rows    [][]string
		Chart   template.URL
	}{Columns: doc.Columns, Rows: rows}
	if doc.HasChart() {
		data.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(doc.ChartPNG))
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render print page: %w", err)
	}
	return &Artifact{FileName: printFile, ContentType: printType, Data: buf.Bytes(), Inline: true}, nil
}

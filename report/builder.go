// Package report assembles the HTML data quality report and writes it, with
// its charts, into the report directory.
package report

import (
	"html/template"
	"strconv"
	"strings"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/stats"
)

var fragments = template.Must(template.New("report").Parse(`
{{- define "head" -}}
<html>
<head>
<title>Data Quality Report - {{.}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1 { color: #2F4F4F; }
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #2F4F4F; color: white; }
.warning { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>📊 Data Quality Report</h1>
<p><b>Generated:</b> {{.}}</p>
{{end -}}

{{- define "table" -}}
<h2 id="{{.Name}}">📁 Tabla: {{.Name}}</h2>
<p>Total registros: <b>{{.RowCount}}</b></p>
{{end -}}

{{- define "grid" -}}
<table border="1" class="{{.Class}}">
<thead>
<tr style="text-align: right;"><th></th>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr><th>{{index . 0}}</th>{{range slice . 1}}<td>{{.}}</td>{{end}}</tr>
{{end -}}
</tbody>
</table>
{{end -}}

{{- define "clean" -}}
<p class="check-ok">✅ {{.Check}}: sin problemas detectados.</p>
{{end -}}

{{- define "warning" -}}
<p class="warning">⚠️ {{.Check}}: {{.Rows}} filas problemáticas.</p>
{{end -}}

{{- define "chart" -}}
<img src="{{.Src}}" alt="{{.Alt}}" style="width:100%"><br>
{{end -}}

{{- define "tail" -}}
</body>
</html>
{{end -}}
`))

// Finding is the outcome of one check as shown in the report.
type Finding struct {
	Check string
	// Rows is the number of offending rows; zero means the check is clean.
	Rows int
	// Offending holds the rows returned by the check, rendered verbatim.
	Offending *sqlrunner.QueryResult
}

type grid struct {
	Class  string
	Header []string
	Rows   [][]string
}

// Builder accumulates the report document. Fragments can only be appended.
type Builder struct {
	doc    strings.Builder
	closed bool
	err    error
}

// NewBuilder starts a report generated at stamp.
func NewBuilder(stamp string) *Builder {
	b := &Builder{}
	b.execute("head", stamp)
	return b
}

// AddTable starts the section of a table with its row count and descriptive
// statistics.
func (b *Builder) AddTable(name string, rowCount int, desc *stats.Description) {
	b.execute("table", struct {
		Name     string
		RowCount int
	}{name, rowCount})

	rows := make([][]string, 0, len(stats.Labels))
	for i, values := range desc.Rows() {
		rows = append(rows, append([]string{stats.Labels[i]}, values...))
	}
	b.execute("grid", grid{Class: "dataframe table table-striped", Header: desc.Header(), Rows: rows})
}

// AddCheck appends the outcome of a check. Findings with offending rows are
// followed by those rows as a table.
func (b *Builder) AddCheck(f Finding) {
	if f.Rows == 0 {
		b.execute("clean", f)
		return
	}

	b.execute("warning", f)
	if f.Offending != nil {
		b.execute("grid", resultGrid(f.Offending))
	}
}

// AddChart appends the chart image of a table. src is resolved relative to
// the report file.
func (b *Builder) AddChart(src, alt string) {
	b.execute("chart", struct{ Src, Alt string }{src, alt})
}

// HTML closes the document and returns it, or the first rendering error.
// Later calls return the same document.
func (b *Builder) HTML() (string, error) {
	if !b.closed {
		b.execute("tail", nil)
		b.closed = true
	}
	if b.err != nil {
		return "", b.err
	}
	return b.doc.String(), nil
}

func (b *Builder) execute(name string, data any) {
	if b.err != nil || b.closed {
		return
	}
	b.err = fragments.ExecuteTemplate(&b.doc, name, data)
}

// resultGrid renders query rows with a leading zero-based row index.
func resultGrid(res *sqlrunner.QueryResult) grid {
	rows := make([][]string, 0, len(res.Rows))
	for i, r := range res.Rows {
		row := make([]string, 0, len(r)+1)
		row = append(row, strconv.Itoa(i))
		for _, c := range r {
			if c.Null {
				row = append(row, "None")
				continue
			}
			row = append(row, c.Value)
		}
		rows = append(rows, row)
	}
	return grid{Class: "dataframe", Header: res.Columns, Rows: rows}
}

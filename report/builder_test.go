package report

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/stats"
)

func parse(t *testing.T, b *Builder) *goquery.Document {
	t.Helper()

	html, err := b.HTML()
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func usuarioResult() *sqlrunner.QueryResult {
	return &sqlrunner.QueryResult{
		Columns: []string{"documento_id", "sexo"},
		Rows: [][]sqlrunner.Cell{
			{{Value: "1001"}, {Value: "Femenino"}},
			{{Value: "1002"}, {Null: true}},
		},
	}
}

func TestBuilderHead(t *testing.T) {
	t.Parallel()

	doc := parse(t, NewBuilder("2024-05-06_07-08"))

	assert.Equal(t, "Data Quality Report - 2024-05-06_07-08", doc.Find("title").Text())
	assert.Contains(t, doc.Find("h1").Text(), "Data Quality Report")
	assert.Contains(t, doc.Find("body > p").First().Text(), "2024-05-06_07-08")
}

func TestBuilderTable(t *testing.T) {
	t.Parallel()

	res := usuarioResult()
	b := NewBuilder("2024-05-06_07-08")
	b.AddTable("usuario", res.Len(), stats.Describe(res))
	doc := parse(t, b)

	assert.Contains(t, doc.Find("h2#usuario").Text(), "usuario")
	assert.Equal(t, "2", doc.Find("h2#usuario + p b").Text())

	grid := doc.Find("table.table-striped")
	require.Equal(t, 1, grid.Length())

	var header []string
	grid.Find("thead th").Each(func(_ int, s *goquery.Selection) {
		header = append(header, s.Text())
	})
	assert.Equal(t, []string{"", "documento_id", "sexo"}, header)

	labels := grid.Find("tbody tr th")
	require.Equal(t, len(stats.Labels), labels.Length())
	assert.Equal(t, "count", labels.First().Text())

	countRow := grid.Find("tbody tr").First().Find("td")
	assert.Equal(t, "2", countRow.Eq(0).Text())
	assert.Equal(t, "1", countRow.Eq(1).Text())
}

func TestBuilderCleanCheck(t *testing.T) {
	t.Parallel()

	b := NewBuilder("2024-05-06_07-08")
	b.AddCheck(Finding{Check: "sexo domain"})
	doc := parse(t, b)

	assert.Equal(t, "✅ sexo domain: sin problemas detectados.", doc.Find("p.check-ok").Text())
	assert.Equal(t, 0, doc.Find("p.warning").Length())
	assert.Equal(t, 0, doc.Find("table").Length())
}

func TestBuilderWarningCheck(t *testing.T) {
	t.Parallel()

	offending := &sqlrunner.QueryResult{
		Columns: []string{"documento_id", "COUNT(*)"},
		Rows:    [][]sqlrunner.Cell{{{Value: "1002"}, {Value: "2", Numeric: true}}},
	}

	b := NewBuilder("2024-05-06_07-08")
	b.AddCheck(Finding{Check: "documento_id uniqueness", Rows: offending.Len(), Offending: offending})
	doc := parse(t, b)

	assert.Equal(t, "⚠️ documento_id uniqueness: 1 filas problemáticas.", doc.Find("p.warning").Text())

	rows := doc.Find("table.dataframe tbody tr")
	require.Equal(t, 1, rows.Length())
	assert.Equal(t, "0", rows.Find("th").Text())
	assert.Equal(t, "1002", rows.Find("td").Eq(0).Text())
	assert.Equal(t, "2", rows.Find("td").Eq(1).Text())
}

func TestBuilderNullCell(t *testing.T) {
	t.Parallel()

	offending := &sqlrunner.QueryResult{
		Columns: []string{"sexo"},
		Rows:    [][]sqlrunner.Cell{{{Null: true}}},
	}

	b := NewBuilder("s")
	b.AddCheck(Finding{Check: "sexo domain", Rows: 1, Offending: offending})
	doc := parse(t, b)

	assert.Equal(t, "None", doc.Find("table.dataframe tbody td").Text())
}

func TestBuilderChart(t *testing.T) {
	t.Parallel()

	b := NewBuilder("2024-05-06_07-08")
	b.AddChart(ChartName("egreso", "2024-05-06_07-08"), "Non-null counts - egreso")
	doc := parse(t, b)

	img := doc.Find("img")
	src, _ := img.Attr("src")
	alt, _ := img.Attr("alt")
	assert.Equal(t, "egreso_non_null_2024-05-06_07-08.png", src)
	assert.Equal(t, "Non-null counts - egreso", alt)
}

func TestBuilderEscapes(t *testing.T) {
	t.Parallel()

	offending := &sqlrunner.QueryResult{
		Columns: []string{"sexo"},
		Rows:    [][]sqlrunner.Cell{{{Value: "<script>alert(1)</script>"}}},
	}

	b := NewBuilder("s")
	b.AddCheck(Finding{Check: "sexo domain", Rows: 1, Offending: offending})
	html, err := b.HTML()
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestBuilderHTMLIsFinal(t *testing.T) {
	t.Parallel()

	b := NewBuilder("s")
	first, err := b.HTML()
	require.NoError(t, err)

	b.AddCheck(Finding{Check: "late"})
	second, err := b.HTML()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(first), "</html>"))
}

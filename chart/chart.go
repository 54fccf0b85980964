// Package chart renders the per-table non-null count bar charts.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
)

const (
	width    = 8 * vg.Inch
	height   = 4 * vg.Inch
	barWidth = 20
)

var barColor = color.RGBA{R: 0x2f, G: 0x4f, B: 0x4f, A: 0xff}

type ColumnCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// NonNullCounts counts the non-NULL cells of every column, in column order.
func NonNullCounts(res *sqlrunner.QueryResult) []ColumnCount {
	counts := make([]ColumnCount, 0, len(res.Columns))
	for i, name := range res.Columns {
		n := 0
		for _, row := range res.Rows {
			if !row[i].Null {
				n++
			}
		}
		counts = append(counts, ColumnCount{Column: name, Count: n})
	}
	return counts
}

// Title returns the chart title used for a table.
func Title(table string) string {
	return "Non-null counts - " + table
}

// Render draws counts as a bar chart and writes it to w as PNG.
func Render(w io.Writer, title string, counts []ColumnCount) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "non-null values"
	p.Y.Min = 0

	if len(counts) > 0 {
		values := make(plotter.Values, len(counts))
		names := make([]string, len(counts))
		for i, c := range counts {
			values[i] = float64(c.Count)
			names[i] = c.Column
		}

		bars, err := plotter.NewBarChart(values, vg.Points(barWidth))
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = barColor
		bars.LineStyle.Width = 0

		p.Add(bars)
		p.NominalX(names...)
		p.X.Tick.Label.Rotation = math.Pi / 4
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// Save renders the chart into a new file at path.
func Save(path, title string, counts []ColumnCount) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return Render(f, title, counts)
}

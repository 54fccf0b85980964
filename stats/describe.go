// Package stats computes per-column descriptive statistics of a query result.
package stats

import (
	"math"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
)

// Labels are the statistic rows of a Description, in display order.
var Labels = []string{"count", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

// ColumnStats summarizes one column. Numeric columns carry the moment and
// quantile fields; other columns carry Unique, Top and Freq.
type ColumnStats struct {
	Name    string
	Numeric bool
	Count   int

	Unique int
	Top    string
	Freq   int

	Mean, Std, Min, Max float64
	Q25, Q50, Q75       float64
}

// Description holds the statistics of every column of a result.
type Description struct {
	Columns []ColumnStats
}

// Describe computes the statistics of every column of res.
func Describe(res *sqlrunner.QueryResult) *Description {
	desc := &Description{Columns: make([]ColumnStats, 0, len(res.Columns))}
	for i, name := range res.Columns {
		desc.Columns = append(desc.Columns, describeColumn(name, res.Column(i)))
	}
	return desc
}

func describeColumn(name string, cells []sqlrunner.Cell) ColumnStats {
	cs := ColumnStats{Name: name}

	values := make([]string, 0, len(cells))
	numeric := true
	for _, c := range cells {
		if c.Null {
			continue
		}
		values = append(values, c.Value)
		numeric = numeric && c.Numeric
	}
	cs.Count = len(values)
	cs.Numeric = numeric && cs.Count > 0

	if !cs.Numeric {
		cs.Unique, cs.Top, cs.Freq = frequencies(values)
		return cs
	}

	xs := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			// Values flagged numeric by the runner always parse; treat a
			// stray one as categorical rather than dropping it.
			cs.Numeric = false
			cs.Unique, cs.Top, cs.Freq = frequencies(values)
			return cs
		}
		xs = append(xs, f)
	}
	slices.Sort(xs)

	cs.Mean = stat.Mean(xs, nil)
	cs.Std = math.NaN()
	if len(xs) > 1 {
		cs.Std = stat.StdDev(xs, nil)
	}
	cs.Min = floats.Min(xs)
	cs.Max = floats.Max(xs)
	cs.Q25 = quantile(xs, 0.25)
	cs.Q50 = quantile(xs, 0.50)
	cs.Q75 = quantile(xs, 0.75)
	return cs
}

// frequencies returns the number of distinct values, the most frequent one and
// its count. Ties go to the value that reached the count first.
func frequencies(values []string) (unique int, top string, freq int) {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
		if counts[v] > freq {
			top, freq = v, counts[v]
		}
	}
	return len(counts), top, freq
}

// quantile interpolates linearly between the closest ranks of sorted xs, the
// same estimator spreadsheet and dataframe tools use by default.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Value renders the named statistic of the column, or "NaN" when it does not
// apply to the column's kind.
func (c ColumnStats) Value(label string) string {
	if c.Numeric {
		switch label {
		case "count":
			return strconv.Itoa(c.Count)
		case "mean":
			return formatFloat(c.Mean)
		case "std":
			return formatFloat(c.Std)
		case "min":
			return formatFloat(c.Min)
		case "25%":
			return formatFloat(c.Q25)
		case "50%":
			return formatFloat(c.Q50)
		case "75%":
			return formatFloat(c.Q75)
		case "max":
			return formatFloat(c.Max)
		}
		return "NaN"
	}

	switch label {
	case "count":
		return strconv.Itoa(c.Count)
	case "unique":
		return strconv.Itoa(c.Unique)
	case "top":
		if c.Count > 0 {
			return c.Top
		}
	case "freq":
		if c.Count > 0 {
			return strconv.Itoa(c.Freq)
		}
	}
	return "NaN"
}

// Header returns the column names of the description.
func (d *Description) Header() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Rows returns one row per label in Labels, each holding the rendered value of
// that statistic for every column.
func (d *Description) Rows() [][]string {
	rows := make([][]string, 0, len(Labels))
	for _, label := range Labels {
		row := make([]string, 0, len(d.Columns))
		for _, c := range d.Columns {
			row = append(row, c.Value(label))
		}
		rows = append(rows, row)
	}
	return rows
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return humanize.FtoaWithDigits(f, 6)
}

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
)

func num(v string) sqlrunner.Cell  { return sqlrunner.Cell{Value: v, Numeric: true} }
func text(v string) sqlrunner.Cell { return sqlrunner.Cell{Value: v} }

var null = sqlrunner.Cell{Null: true}

func TestDescribeNumeric(t *testing.T) {
	t.Parallel()

	res := &sqlrunner.QueryResult{
		Columns: []string{"edad"},
		Rows:    [][]sqlrunner.Cell{{num("10")}, {num("20")}, {null}, {num("30")}, {num("40")}},
	}

	desc := Describe(res)
	require.Len(t, desc.Columns, 1)

	c := desc.Columns[0]
	assert.True(t, c.Numeric)
	assert.Equal(t, 4, c.Count)
	assert.InDelta(t, 25, c.Mean, 1e-9)
	assert.InDelta(t, 12.909944, c.Std, 1e-6)
	assert.Equal(t, 10.0, c.Min)
	assert.Equal(t, 40.0, c.Max)
	assert.InDelta(t, 17.5, c.Q25, 1e-9)
	assert.InDelta(t, 25, c.Q50, 1e-9)
	assert.InDelta(t, 32.5, c.Q75, 1e-9)

	assert.Equal(t, "4", c.Value("count"))
	assert.Equal(t, "25", c.Value("mean"))
	assert.Equal(t, "17.5", c.Value("25%"))
	assert.Equal(t, "NaN", c.Value("top"))
	assert.Equal(t, "NaN", c.Value("unique"))
}

func TestDescribeSingleValue(t *testing.T) {
	t.Parallel()

	desc := Describe(&sqlrunner.QueryResult{
		Columns: []string{"dias_estancia"},
		Rows:    [][]sqlrunner.Cell{{num("3.5")}},
	})

	c := desc.Columns[0]
	assert.True(t, math.IsNaN(c.Std))
	assert.Equal(t, "NaN", c.Value("std"))
	assert.Equal(t, "3.5", c.Value("50%"))
	assert.Equal(t, "3.5", c.Value("max"))
}

func TestDescribeCategorical(t *testing.T) {
	t.Parallel()

	res := &sqlrunner.QueryResult{
		Columns: []string{"sexo"},
		Rows: [][]sqlrunner.Cell{
			{text("Femenino")}, {text("Masculino")}, {text("Masculino")}, {null}, {text("Femenino")},
		},
	}

	c := Describe(res).Columns[0]
	assert.False(t, c.Numeric)
	assert.Equal(t, 4, c.Count)
	assert.Equal(t, 2, c.Unique)
	assert.Equal(t, "Masculino", c.Top, "ties go to the value that reached the count first")
	assert.Equal(t, 2, c.Freq)
	assert.Equal(t, "NaN", c.Value("mean"))
}

func TestDescribeMixedAndEmpty(t *testing.T) {
	t.Parallel()

	res := &sqlrunner.QueryResult{
		Columns: []string{"codigo", "observacion"},
		Rows: [][]sqlrunner.Cell{
			{num("1"), null},
			{text("J18"), null},
		},
	}

	desc := Describe(res)
	codigo, observacion := desc.Columns[0], desc.Columns[1]

	assert.False(t, codigo.Numeric, "a single non-numeric value makes the column categorical")
	assert.Equal(t, 2, codigo.Unique)

	assert.False(t, observacion.Numeric)
	assert.Equal(t, "0", observacion.Value("count"))
	assert.Equal(t, "0", observacion.Value("unique"))
	assert.Equal(t, "NaN", observacion.Value("top"))
	assert.Equal(t, "NaN", observacion.Value("freq"))
}

func TestDescriptionTable(t *testing.T) {
	t.Parallel()

	desc := Describe(&sqlrunner.QueryResult{
		Columns: []string{"documento_id", "edad"},
		Rows:    [][]sqlrunner.Cell{{text("1001"), num("30")}, {text("1002"), num("50")}},
	})

	assert.Equal(t, []string{"documento_id", "edad"}, desc.Header())

	rows := desc.Rows()
	require.Len(t, rows, len(Labels))
	assert.Equal(t, []string{"2", "2"}, rows[0])   // count
	assert.Equal(t, []string{"2", "NaN"}, rows[1]) // unique
	assert.Equal(t, []string{"NaN", "40"}, rows[4]) // mean
}

func TestDescribeNoRows(t *testing.T) {
	t.Parallel()

	desc := Describe(&sqlrunner.QueryResult{Columns: []string{"egreso_id"}, Rows: [][]sqlrunner.Cell{}})
	require.Len(t, desc.Columns, 1)
	assert.Equal(t, "0", desc.Columns[0].Value("count"))
}

package chart

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlrunner "github.com/interop-masterdata/dataquality/lib"
)

func TestNonNullCounts(t *testing.T) {
	t.Parallel()

	res := &sqlrunner.QueryResult{
		Columns: []string{"atencion_id", "fecha_egreso", "causa"},
		Rows: [][]sqlrunner.Cell{
			{{Value: "A-1"}, {Null: true}, {Value: "alta"}},
			{{Value: "A-2"}, {Value: "2024-03-01 00:00:00"}, {Null: true}},
			{{Value: "A-3"}, {Null: true}, {Null: true}},
		},
	}

	assert.Equal(t, []ColumnCount{
		{Column: "atencion_id", Count: 3},
		{Column: "fecha_egreso", Count: 1},
		{Column: "causa", Count: 1},
	}, NonNullCounts(res))
}

func TestRender(t *testing.T) {
	t.Parallel()

	t.Run("Bars", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		err := Render(&buf, Title("usuario"), []ColumnCount{
			{Column: "documento_id", Count: 12},
			{Column: "sexo", Count: 11},
		})
		require.NoError(t, err)

		img, err := png.Decode(&buf)
		require.NoError(t, err)
		assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
	})

	t.Run("No columns", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, Render(&buf, Title("egreso"), nil))

		_, err := png.Decode(&buf)
		require.NoError(t, err)
	})

	t.Run("All zero", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, Render(&buf, Title("egreso"), []ColumnCount{{Column: "atencion_id"}}))
		assert.NotZero(t, buf.Len())
	})
}

func TestSave(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "usuario_non_null_2024-01-02_03-04.png")
	require.NoError(t, Save(path, Title("usuario"), []ColumnCount{{Column: "sexo", Count: 3}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = png.Decode(f)
	require.NoError(t, err)
}

func TestSaveMissingDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "chart.png")
	require.Error(t, Save(path, Title("usuario"), nil))
}

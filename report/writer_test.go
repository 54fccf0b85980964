package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runStart = time.Date(2024, 5, 6, 7, 8, 59, 0, time.UTC)

func TestStamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2024-05-06_07-08", Stamp(runStart))
	assert.Equal(t, "2024-12-31_23-05", Stamp(time.Date(2024, 12, 31, 23, 5, 0, 0, time.UTC)))
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	t.Run("Creates missing directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "reports")
		w, err := NewWriter(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, w.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("Reuses existing directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		previous := filepath.Join(dir, "ge_report_2020-01-01_00-00.html")
		require.NoError(t, os.WriteFile(previous, []byte("old"), 0o644))

		_, err := NewWriter(dir)
		require.NoError(t, err)

		data, err := os.ReadFile(previous)
		require.NoError(t, err)
		assert.Equal(t, "old", string(data))
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()

		_, err := NewWriter("")
		require.Error(t, err)
	})
}

func TestPaths(t *testing.T) {
	t.Parallel()

	w := &Writer{dir: "reports"}
	assert.Equal(t, filepath.Join("reports", "ge_report_2024-05-06_07-08.html"), w.ReportPath("2024-05-06_07-08"))
	assert.Equal(t, filepath.Join("reports", "usuario_non_null_2024-05-06_07-08.png"), w.ChartPath("usuario", "2024-05-06_07-08"))
}

func TestReserveAndWrite(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	stamp, err := w.Reserve(runStart)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06_07-08", stamp)

	path, err := w.Write(stamp, "<html>first</html>")
	require.NoError(t, err)
	assert.Equal(t, w.ReportPath(stamp), path)

	// A second run in the same minute gets its own file.
	again, err := w.Reserve(runStart)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06_07-08_1", again)

	_, err = w.Write(again, "<html>second</html>")
	require.NoError(t, err)

	third, err := w.Reserve(runStart)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06_07-08_2", third)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>first</html>", string(first))
}

func TestWriteRefusesOverwrite(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	_, err = w.Write("2024-05-06_07-08", "one")
	require.NoError(t, err)

	_, err = w.Write("2024-05-06_07-08", "two")
	require.ErrorIs(t, err, os.ErrExist)
}

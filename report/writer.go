package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StampLayout formats the run start time in report and chart file names.
const StampLayout = "2006-01-02_15-04"

// maxSuffix bounds the search for a free stamp within one minute.
const maxSuffix = 1000

// Stamp formats t as YYYY-MM-DD_HH-MM.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// Writer places reports and charts in a directory.
type Writer struct {
	dir string
}

// NewWriter returns a writer for dir, creating it when it does not exist. An
// existing directory and its content are left untouched.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("report directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string {
	return w.dir
}

// ReportPath is the report file of a run.
func (w *Writer) ReportPath(stamp string) string {
	return filepath.Join(w.dir, "ge_report_"+stamp+".html")
}

// ChartName is the chart file name of a table, relative to the directory.
func ChartName(table, stamp string) string {
	return table + "_non_null_" + stamp + ".png"
}

// ChartPath is the chart file of a table.
func (w *Writer) ChartPath(table, stamp string) string {
	return filepath.Join(w.dir, ChartName(table, stamp))
}

// Reserve returns the stamp of a run started at t. When a report with that
// stamp already exists, a numeric suffix is added so earlier reports are
// never overwritten.
func (w *Writer) Reserve(t time.Time) (string, error) {
	base := Stamp(t)
	for i := 0; i < maxSuffix; i++ {
		stamp := base
		if i > 0 {
			stamp = base + "_" + strconv.Itoa(i)
		}

		_, err := os.Stat(w.ReportPath(stamp))
		if errors.Is(err, fs.ErrNotExist) {
			return stamp, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat report: %w", err)
		}
	}
	return "", fmt.Errorf("no free report name for %s in %s", base, w.dir)
}

// Write stores the report document of a run and returns its path. It fails
// if the file already exists.
func (w *Writer) Write(stamp, doc string) (path string, err error) {
	path = w.ReportPath(stamp)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := f.WriteString(doc); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Package validate runs the master-data checks against a database and
// produces the HTML report of one run.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/interop-masterdata/dataquality/catalog"
	"github.com/interop-masterdata/dataquality/chart"
	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/report"
	"github.com/interop-masterdata/dataquality/stats"
)

var tracer = otel.Tracer("dataquality/validate")

// Querier runs a query and materializes its result. *sqlrunner.SQLRunner
// implements it.
type Querier interface {
	Query(ctx context.Context, query string) (*sqlrunner.QueryResult, error)
}

// CheckOutcome is the result of one check. A check is clean when its query
// returned no rows.
type CheckOutcome struct {
	Table     string                 `json:"table"`
	Check     string                 `json:"check"`
	Clean     bool                   `json:"clean"`
	Rows      int                    `json:"rows"`
	Offending *sqlrunner.QueryResult `json:"offending,omitempty"`
}

type TableSummary struct {
	Name      string         `json:"name"`
	RowCount  int            `json:"row_count"`
	ChartPath string         `json:"chart_path"`
	Checks    []CheckOutcome `json:"checks"`
}

// Summary describes a finished run.
type Summary struct {
	RunID      uuid.UUID      `json:"run_id"`
	Stamp      string         `json:"stamp"`
	StartedAt  time.Time      `json:"started_at"`
	ReportPath string         `json:"report_path"`
	Tables     []TableSummary `json:"tables"`
	// Warnings counts the checks that found problematic rows.
	Warnings int `json:"warnings"`
}

// Outcomes flattens the check outcomes of every table, in run order.
func (s *Summary) Outcomes() []CheckOutcome {
	var out []CheckOutcome
	for _, t := range s.Tables {
		out = append(out, t.Checks...)
	}
	return out
}

// TableError reports a failure while validating a table. Check is empty when
// the failure happened outside a check.
type TableError struct {
	Table  string
	Check  string
	Parent error
}

func (e TableError) Error() string {
	if e.Check == "" {
		return fmt.Sprintf("table %s: %s", e.Table, e.Parent)
	}
	return fmt.Sprintf("table %s, check %q: %s", e.Table, e.Check, e.Parent)
}

func (e TableError) Unwrap() error {
	return e.Parent
}

// ReportError reports a failure writing the report or its charts.
type ReportError struct {
	Parent error
}

func (e ReportError) Error() string {
	return "report: " + e.Parent.Error()
}

func (e ReportError) Unwrap() error {
	return e.Parent
}

// Runner executes validation runs. Tables are validated in order; checks
// that find rows are reported as warnings and never stop the run.
type Runner struct {
	Querier Querier
	Tables  []catalog.TableSpec
	Writer  *report.Writer

	// Now defaults to time.Now.
	Now func() time.Time
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run validates every table and writes the report. Any query error aborts the
// run; no report file is written in that case.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.Querier == nil || r.Writer == nil {
		return nil, errors.New("runner requires a querier and a writer")
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	startedAt := now()
	stamp, err := r.Writer.Reserve(startedAt)
	if err != nil {
		return nil, ReportError{Parent: err}
	}

	summary := &Summary{
		RunID:     uuid.New(),
		Stamp:     stamp,
		StartedAt: startedAt,
		Tables:    make([]TableSummary, 0, len(r.Tables)),
	}
	logger = logger.With(slog.String("run_id", summary.RunID.String()))

	ctx, span := tracer.Start(ctx, "validate.run", trace.WithAttributes(
		attribute.String("run.id", summary.RunID.String()),
		attribute.String("run.stamp", stamp),
	))
	defer span.End()

	b := report.NewBuilder(stamp)
	for _, spec := range r.Tables {
		ts, err := r.validateTable(ctx, logger, b, spec, stamp)
		if err != nil {
			span.SetStatus(codes.Error, "table error")
			span.RecordError(err)
			return nil, err
		}
		summary.Tables = append(summary.Tables, ts)
		for _, c := range ts.Checks {
			if !c.Clean {
				summary.Warnings++
			}
		}
	}

	span.AddEvent("report.write")
	doc, err := b.HTML()
	if err != nil {
		return nil, ReportError{Parent: fmt.Errorf("render: %w", err)}
	}
	path, err := r.Writer.Write(stamp, doc)
	if err != nil {
		span.SetStatus(codes.Error, "report write error")
		span.RecordError(err)
		return nil, ReportError{Parent: err}
	}
	summary.ReportPath = path

	span.SetAttributes(attribute.Int("run.warnings", summary.Warnings))
	span.SetStatus(codes.Ok, "success")
	logger.InfoContext(ctx, "report written",
		slog.String("path", path),
		slog.Int("tables", len(summary.Tables)),
		slog.Int("warnings", summary.Warnings))

	return summary, nil
}

func (r *Runner) validateTable(ctx context.Context, logger *slog.Logger, b *report.Builder, spec catalog.TableSpec, stamp string) (TableSummary, error) {
	ctx, span := tracer.Start(ctx, "validate.table", trace.WithAttributes(attribute.String("table", spec.Name)))
	defer span.End()

	span.AddEvent("table.fetch")
	full, err := r.Querier.Query(ctx, spec.FullQuery)
	if err != nil {
		span.SetStatus(codes.Error, "fetch error")
		span.RecordError(err)
		return TableSummary{}, TableError{Table: spec.Name, Parent: err}
	}

	logger.InfoContext(ctx, "table loaded",
		slog.String("table", spec.Name),
		slog.String("rows", humanize.Comma(int64(full.Len()))))

	span.AddEvent("table.describe")
	b.AddTable(spec.Name, full.Len(), stats.Describe(full))

	ts := TableSummary{
		Name:     spec.Name,
		RowCount: full.Len(),
		Checks:   make([]CheckOutcome, 0, len(spec.Checks)),
	}

	for _, check := range spec.Checks {
		outcome, err := r.runCheck(ctx, logger, spec.Name, check)
		if err != nil {
			span.SetStatus(codes.Error, "check error")
			span.RecordError(err)
			return TableSummary{}, err
		}
		b.AddCheck(report.Finding{Check: outcome.Check, Rows: outcome.Rows, Offending: outcome.Offending})
		ts.Checks = append(ts.Checks, outcome)
	}

	span.AddEvent("table.chart")
	ts.ChartPath = r.Writer.ChartPath(spec.Name, stamp)
	if err := chart.Save(ts.ChartPath, chart.Title(spec.Name), chart.NonNullCounts(full)); err != nil {
		span.SetStatus(codes.Error, "chart error")
		span.RecordError(err)
		return TableSummary{}, ReportError{Parent: fmt.Errorf("chart %s: %w", spec.Name, err)}
	}
	b.AddChart(filepath.Base(ts.ChartPath), chart.Title(spec.Name))

	span.SetStatus(codes.Ok, "success")
	return ts, nil
}

func (r *Runner) runCheck(ctx context.Context, logger *slog.Logger, table string, check catalog.Check) (CheckOutcome, error) {
	ctx, span := tracer.Start(ctx, "validate.check", trace.WithAttributes(
		attribute.String("table", table),
		attribute.String("check", check.Name),
	))
	defer span.End()

	res, err := r.Querier.Query(ctx, check.Query)
	if err != nil {
		span.SetStatus(codes.Error, "query error")
		span.RecordError(err)
		return CheckOutcome{}, TableError{Table: table, Check: check.Name, Parent: err}
	}

	outcome := CheckOutcome{
		Table: table,
		Check: check.Name,
		Clean: res.Empty(),
		Rows:  res.Len(),
	}
	span.SetAttributes(attribute.Int("check.rows", outcome.Rows))

	if outcome.Clean {
		logger.InfoContext(ctx, "check passed",
			slog.String("table", table),
			slog.String("check", check.Name))
		return outcome, nil
	}

	outcome.Offending = res
	logger.WarnContext(ctx, "check found problematic rows",
		slog.String("table", table),
		slog.String("check", check.Name),
		slog.String("rows", humanize.Comma(int64(outcome.Rows))))
	return outcome, nil
}

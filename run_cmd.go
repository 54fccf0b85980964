package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/interop-masterdata/dataquality/catalog"
	"github.com/interop-masterdata/dataquality/config"
	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/report"
	"github.com/interop-masterdata/dataquality/validate"
)

type runOptions struct {
	tables        []string
	failOnWarning bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every check once and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd.Context(), opts)
		},
	}
	bindRunFlags(cmd, &opts)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringSliceVar(&opts.tables, "table", nil, fmt.Sprintf("Only validate these tables (any of %v)", catalog.Names()))
	cmd.Flags().BoolVar(&opts.failOnWarning, "fail-on-warning", false, "Exit with status 2 when a check finds problematic rows")
}

func (a *app) runOnce(ctx context.Context, opts runOptions) error {
	tables, err := catalog.Select(opts.tables)
	if err != nil {
		return withCode(exitUsage, err)
	}

	summary, err := runValidation(ctx, a.cfg, tables)
	if err != nil {
		return err
	}

	if err := writeJSONLine(summary); err != nil {
		return err
	}

	if opts.failOnWarning && summary.Warnings > 0 {
		return withCode(exitWarnings, fmt.Errorf("%d checks found problematic rows, see %s", summary.Warnings, summary.ReportPath))
	}
	return nil
}

// runValidation opens the database, validates tables and writes the report.
// The connection is closed before returning, also when the run fails.
func runValidation(ctx context.Context, cfg *config.Config, tables []catalog.TableSpec) (summary *validate.Summary, err error) {
	ctx, span := tracer.Start(ctx, "runValidation")
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, "run failed")
			span.RecordError(err)
		}
	}()

	w, err := report.NewWriter(cfg.ReportDir)
	if err != nil {
		return nil, withCode(exitReport, err)
	}

	span.SetAttributes(attribute.String("db.system", cfg.Database.Driver))
	slog.InfoContext(ctx, "connecting", slog.String("database", cfg.Database.Redacted()))

	runner, err := sqlrunner.Open(ctx, cfg.Database.Driver, cfg.Database.ConnectionString())
	if err != nil {
		return nil, withCode(exitDB, err)
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			slog.WarnContext(ctx, "close database", slog.Any("error", cerr))
		}
	}()

	v := &validate.Runner{
		Querier: runner,
		Tables:  tables,
		Writer:  w,
		Logger:  slog.Default(),
	}
	summary, err = v.Run(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return summary, nil
}

func writeJSONLine(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

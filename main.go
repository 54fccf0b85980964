package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/interop-masterdata/dataquality/config"
)

var tracer = otel.Tracer("dataquality")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}

// app carries the state shared by every command: the resolved configuration
// and the telemetry pipeline.
type app struct {
	configPath string
	reportDir  string
	logLevel   string

	cfg      *config.Config
	shutdown func(context.Context) error
}

func newRootCmd(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:           "dataquality",
		Short:         "Validate the interoperability master data and write an HTML quality report",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.reportDir, "report-dir", "", "Directory receiving reports and charts (default \"reports\")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	bindRunFlags(cmd, &opts)

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

// setup resolves the configuration and starts telemetry. Flags win over the
// environment, which wins over the config file.
func (a *app) setup(ctx context.Context) error {
	if _, err := config.LoadEnv(config.EnvFiles); err != nil {
		return withCode(exitUsage, fmt.Errorf("load env files: %w", err))
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if a.reportDir != "" {
		cfg.ReportDir = a.reportDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return withCode(exitUsage, err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return withCode(exitUsage, err)
	}

	shutdown, err := setupOTelSDK(ctx, cfg.Telemetry, level)
	if err != nil {
		return fmt.Errorf("setup OpenTelemetry: %w", err)
	}

	a.cfg = cfg
	a.shutdown = shutdown
	return nil
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown OpenTelemetry", slog.Any("error", err))
	}
	a.shutdown = nil
}

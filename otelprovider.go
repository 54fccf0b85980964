package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/interop-masterdata/dataquality/config"
)

const serviceName = "dataquality"

// setupOTelSDK bootstraps the OpenTelemetry pipeline and installs the default
// slog logger. Exporters set to "none" are skipped; without a log exporter,
// logs go to stderr as text at level.
// If it does not return an error, make sure to call shutdown for proper cleanup.
func setupOTelSDK(ctx context.Context, opts config.TelemetryOptions, level slog.Level) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	var err error

	// shutdown calls cleanup functions registered via shutdownFuncs.
	// The errors from the calls are joined.
	// Each registered cleanup will be invoked once.
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	// handleErr calls shutdown for cleanup and makes sure that all errors are returned.
	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	otel.SetTextMapPropagator(newPropagator())

	if opts.TracesExporter != "none" {
		tracerProvider, err := newTracerProvider(ctx, opts)
		if err != nil {
			handleErr(err)
			return shutdown, err
		}
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	if opts.LogsExporter == "none" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return shutdown, err
	}

	loggerProvider, err := newLoggerProvider(ctx, opts)
	if err != nil {
		handleErr(err)
		return shutdown, err
	}
	shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	slog.SetDefault(slog.New(otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(loggerProvider))))

	return shutdown, err
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTracerProvider(ctx context.Context, opts config.TelemetryOptions) (*trace.TracerProvider, error) {
	traceExporter, err := newTracerExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
	)
	return tracerProvider, nil
}

func newTracerExporter(ctx context.Context, opts config.TelemetryOptions) (trace.SpanExporter, error) {
	switch opts.TracesExporter {
	case "console":
		// stdout carries the run summary.
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	case "otlp":
		return newOtlpTracerExporter(ctx, opts.TracesOTLPProtocol())
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", opts.TracesExporter)
	}
}

func newOtlpTracerExporter(ctx context.Context, protocol string) (trace.SpanExporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

func newLoggerProvider(ctx context.Context, opts config.TelemetryOptions) (*log.LoggerProvider, error) {
	logExporter, err := newLoggerExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	loggerProvider := log.NewLoggerProvider(
		log.WithProcessor(
			log.NewBatchProcessor(logExporter),
		),
	)
	return loggerProvider, nil
}

func newLoggerExporter(ctx context.Context, opts config.TelemetryOptions) (log.Exporter, error) {
	switch opts.LogsExporter {
	case "console":
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	case "otlp":
		return newOtlpLoggerExporter(ctx, opts.LogsOTLPProtocol())
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", opts.LogsExporter)
	}
}

func newOtlpLoggerExporter(ctx context.Context, protocol string) (log.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlploggrpc.New(ctx)
	case "http/protobuf":
		return otlploghttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

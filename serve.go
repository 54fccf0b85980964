package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Depado/ginprom"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	sloggin "github.com/samber/slog-gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/interop-masterdata/dataquality/catalog"
	"github.com/interop-masterdata/dataquality/config"
	sqlrunner "github.com/interop-masterdata/dataquality/lib"
	"github.com/interop-masterdata/dataquality/report"
	"github.com/interop-masterdata/dataquality/validate"
)

const runTimeout = 10 * time.Minute

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP and run validations on demand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Serve.Addr = addr
			}
			return serve(cmd.Context(), a.cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default \":8080\", or \":$PORT\")")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if _, err := report.NewWriter(cfg.ReportDir); err != nil {
		return withCode(exitReport, err)
	}

	run := func(ctx context.Context) (*validate.Summary, error) {
		return runValidation(ctx, cfg, catalog.MasterData())
	}

	r, err := newRouter(cfg, run, prometheus.NewRegistry(), slog.Default())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Serve.Addr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", slog.String("addr", cfg.Serve.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("Received signal to shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", slog.Any("error", err))
	}
	return nil
}

type runFunc func(ctx context.Context) (*validate.Summary, error)

func newRouter(cfg *config.Config, run runFunc, registry *prometheus.Registry, logger *slog.Logger) (*gin.Engine, error) {
	history, err := lru.New[string, *validate.Summary](cfg.Serve.History)
	if err != nil {
		return nil, fmt.Errorf("create run history: %w", err)
	}

	r := gin.New()
	p := ginprom.New(
		ginprom.Engine(r),
		ginprom.Path("/metrics"),
		ginprom.Registry(registry),
	)
	r.Use(gin.Recovery())
	r.Use(p.Instrument())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(sloggin.New(logger))

	p.AddCustomCounter("validation_runs_total", "The total number of validation runs.", []string{"code"})
	p.AddCustomHistogram("validation_run_duration_seconds", "The duration of each validation run.", []string{"code"})
	p.AddCustomGauge("validation_check_violations", "Problematic rows found by each check in the latest run.", []string{"table", "check"})

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	service := &ValidationService{
		p:       p,
		run:     run,
		history: history,
	}
	r.POST("/runs", service.Serve)
	r.GET("/runs/:id", service.Get)
	r.Static("/reports", cfg.ReportDir)

	return r, nil
}

// ValidationService runs validations over HTTP. Concurrent requests share a
// single run.
type ValidationService struct {
	p       *ginprom.Prometheus
	sfgroup singleflight.Group
	run     runFunc
	history *lru.Cache[string, *validate.Summary]
}

func (s *ValidationService) Serve(c *gin.Context) {
	now := time.Now()

	ctx, span := tracer.Start(c.Request.Context(), "ValidationService.Serve")
	defer span.End()

	span.AddEvent("run")
	result, err, shared := s.sfgroup.Do("run", func() (any, error) {
		// Detached from the request that started it: other callers share the result.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()
		return s.run(runCtx)
	})
	span.SetAttributes(attribute.Bool("run.shared", shared))
	if err != nil {
		span.SetStatus(codes.Error, "run error")
		span.RecordError(err)

		status := statusOf(err)
		s.observe(strconv.Itoa(status), now)
		c.JSON(status, NewFailedResponse(err))
		return
	}

	summary := result.(*validate.Summary)
	s.history.Add(summary.RunID.String(), summary)
	for _, o := range summary.Outcomes() {
		_ = s.p.SetGaugeValue("validation_check_violations", []string{o.Table, o.Check}, float64(o.Rows))
	}

	s.observe("200", now)
	span.SetStatus(codes.Ok, "success")

	c.JSON(http.StatusOK, NewSuccessResponse(summary))
}

func (s *ValidationService) Get(c *gin.Context) {
	id := c.Param("id")
	summary, ok := s.history.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, NewFailedResponse(NotFoundError{ID: id}))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(summary))
}

func (s *ValidationService) observe(code string, start time.Time) {
	_ = s.p.IncrementCounterValue("validation_runs_total", []string{code})
	_ = s.p.AddCustomHistogramValue("validation_run_duration_seconds", []string{code}, time.Since(start).Seconds())
}

func statusOf(err error) int {
	var connErr sqlrunner.ConnectError
	var queryErr sqlrunner.QueryError
	if errors.As(err, &connErr) || errors.As(err, &queryErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type RunResponse struct {
	Success bool `json:"success"`

	Data      *validate.Summary `json:"data,omitempty"`       // success = true
	ReportURL string            `json:"report_url,omitempty"` // success = true
	Message   *string           `json:"message,omitempty"`    // success = false
	Code      *string           `json:"code,omitempty"`       // success = false
}

type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return "run not found: " + e.ID
}

func NewSuccessResponse(summary *validate.Summary) RunResponse {
	return RunResponse{
		Success:   true,
		Data:      summary,
		ReportURL: "/reports/" + filepath.Base(summary.ReportPath),
	}
}

func NewFailedResponse(err error) RunResponse {
	var notFound NotFoundError
	var connErr sqlrunner.ConnectError
	var queryErr sqlrunner.QueryError
	var reportErr validate.ReportError

	var code string
	var message string

	if errors.As(err, &notFound) {
		code = "NOT_FOUND"
		message = notFound.Error()
	} else if errors.As(err, &connErr) {
		code = "CONNECT_ERROR"
		message = connErr.Parent.Error()
	} else if errors.As(err, &queryErr) {
		code = "QUERY_ERROR"
		message = err.Error()
	} else if errors.As(err, &reportErr) {
		code = "REPORT_ERROR"
		message = reportErr.Parent.Error()
	} else {
		code = "INTERNAL_ERROR"
		message = err.Error()
	}

	return RunResponse{
		Success: false,
		Message: &message,
		Code:    &code,
	}
}

// Package server builds the application's dependencies and runs the HTTP
// front end.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/api"
	"github.com/JakeFAU/quizchain/internal/clock"
	"github.com/JakeFAU/quizchain/internal/config"
	collyfetcher "github.com/JakeFAU/quizchain/internal/fetcher/colly"
	"github.com/JakeFAU/quizchain/internal/id"
	"github.com/JakeFAU/quizchain/internal/metrics"
	"github.com/JakeFAU/quizchain/internal/parser"
	"github.com/JakeFAU/quizchain/internal/progress"
	progresssinks "github.com/JakeFAU/quizchain/internal/progress/sinks"
	"github.com/JakeFAU/quizchain/internal/quiz"
	"github.com/JakeFAU/quizchain/internal/renderer/headless"
	"github.com/JakeFAU/quizchain/internal/submit"
	"github.com/JakeFAU/quizchain/internal/telemetry"
	"github.com/JakeFAU/quizchain/internal/workflow"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	orchestrator   *workflow.Orchestrator
	apiServer      *api.Server
	progressHub    *progress.Hub
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Progress metrics register on
// the default Prometheus registry.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return build(ctx, cfg, logger, prometheus.DefaultRegisterer)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_steps", cfg.Workflow.MaxSteps),
		zap.Duration("time_budget", cfg.TimeBudget()),
		zap.Duration("hard_timeout", cfg.HardTimeout()),
	)

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
		logger.Info("tracing enabled", zap.String("service_name", cfg.Telemetry.ServiceName))
	}
	metrics.Init()

	hub, err := setupProgress(app, reg)
	if err != nil {
		return nil, err
	}
	app.progressHub = hub

	app.orchestrator = workflow.New(
		workflow.Config{
			TimeBudget:      cfg.TimeBudget(),
			MaxSteps:        cfg.Workflow.MaxSteps,
			DownloadTimeout: cfg.DownloadTimeout(),
		},
		setupRenderer(app),
		collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.Headless.UserAgent,
			Timeout:      cfg.DownloadTimeout(),
			MaxBodyBytes: cfg.Parser.MaxDownloadBytes,
		}),
		parser.New(parser.Config{
			Column:  cfg.Parser.ColumnName,
			PDFPage: cfg.Parser.PDFPage,
		}),
		submit.New(submit.Config{
			Timeout:         cfg.SubmitTimeout(),
			MaxPayloadBytes: cfg.Workflow.MaxPayloadBytes,
			ExcerptBytes:    cfg.Workflow.ResponseExcerptBytes,
			UserAgent:       cfg.Headless.UserAgent,
		}, logger.Named("submit")),
		clock.New(),
		id.New(),
		hub,
		logger.Named("workflow"),
	)
	app.apiServer = api.NewServer(app.orchestrator, cfg, logger.Named("api"))
	return app, nil
}

func setupProgress(app *App, reg prometheus.Registerer) (*progress.Hub, error) {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: app.logger.Named("progress_hub")},
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
	)
	app.logger.Debug("progress hub initialized")
	return hub, nil
}

// setupRenderer falls back to a renderer that fails every page when the
// headless configuration is rejected, so the service still answers requests.
func setupRenderer(app *App) quiz.Renderer {
	r, err := headless.NewChromedp(headless.Config{
		MaxParallel:       app.cfg.Headless.MaxParallel,
		UserAgent:         app.cfg.Headless.UserAgent,
		NavigationTimeout: app.cfg.NavTimeout(),
		SettleDelay:       app.cfg.SettleDelay(),
		NoSandbox:         app.cfg.Headless.NoSandbox,
		DomainQPS:         app.cfg.Headless.DomainQPS,
	}, app.logger.Named("renderer"))
	if err != nil {
		app.logger.Warn("headless renderer init failed", zap.Error(err))
		return headless.NewNoop()
	}
	app.logger.Info("using headless renderer",
		zap.Int("max_parallel", app.cfg.Headless.MaxParallel),
		zap.Float64("domain_qps", app.cfg.Headless.DomainQPS),
	)
	return r
}

// Handler returns the HTTP handler of the front end.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// RunOnce executes a single workflow under the configured hard timeout.
func (a *App) RunOnce(ctx context.Context, req quiz.WorkflowRequest) (quiz.WorkflowResult, error) {
	res, err := a.orchestrator.RunWithin(ctx, req, a.cfg.HardTimeout())
	if err != nil {
		return quiz.WorkflowResult{}, fmt.Errorf("run workflow: %w", err)
	}
	return res, nil
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return errors.Join(err, closeErr)
	default:
		return closeErr
	}
}

// Close flushes progress events and shuts down tracing.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub close: %w", err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

package server

import (
	"context"
	"fmt"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/usecase"
	"RegimeLab/pkg/config"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/metrics"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	recorder    *metrics.Recorder
	reports     *usecase.ReportGenerator
	classify    *usecase.ClassifyTable
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	recorder *metrics.Recorder,
	reports *usecase.ReportGenerator,
	classify *usecase.ClassifyTable,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		recorder:    recorder,
		reports:     reports,
		classify:    classify,
		httpHandler: httpHandler,
	}
}

// Logger returns the application logger.
func (a *App) Logger() *applogger.Logger { return a.log }

// Report runs the full pipeline once and pushes metrics when a Pushgateway
// is configured. A failed push is logged only.
func (a *App) Report(ctx context.Context) (*models.Report, error) {
	r, err := a.reports.Generate(ctx)
	if err != nil {
		a.recorder.RecordError("report")
	}
	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if perr := a.recorder.Push(ctx, url, a.cfg.Metrics.Job); perr != nil {
			a.log.Warn("metrics push failed", applogger.String("url", url), applogger.Error(perr))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	return r, nil
}

// Classify labels the configured observation table and writes it to path.
func (a *App) Classify(ctx context.Context, path string) (usecase.LabeledSet, error) {
	return a.classify.Run(ctx, path, usecase.ClassifyOptions{})
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	srv := xhttp.NewServer(a.httpHandler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithServerLogger(a.log),
	)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		return err
	}
	return nil
}

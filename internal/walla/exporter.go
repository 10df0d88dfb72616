package walla

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/logging"
	"github.com/shehryarbajwa/walla-export/internal/metrics"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

const tracerName = "github.com/shehryarbajwa/walla-export/internal/walla"

// Exporter runs one report export per call, each in its own browser session
type Exporter struct {
	launcher browser.Launcher
	site     Site
	timeouts Timeouts
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option customizes an Exporter
type Option func(*Exporter)

// WithTimeouts replaces DefaultTimeouts
func WithTimeouts(t Timeouts) Option {
	return func(e *Exporter) {
		e.timeouts = t
	}
}

// WithMetrics records export outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) {
		e.metrics = m
	}
}

func NewExporter(launcher browser.Launcher, site Site, logger *zap.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		launcher: launcher,
		site:     site,
		timeouts: DefaultTimeouts(),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export launches a session, logs in if needed, opens the report and
// downloads it. It makes a single attempt; the session is closed however
// the attempt ends.
func (e *Exporter) Export(ctx context.Context, req models.ReportRequest) (result *models.ExportResult, err error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	// Request ids come from callers; the session id names containers and
	// keys the session registry, so it is always generated here.
	sessionID := uuid.NewString()
	logger := e.logger.With(
		zap.String(logging.RequestID, logging.RequestIDFrom(ctx)),
		zap.String(logging.SessionID, sessionID),
		zap.String(logging.Report, req.Kind.Slug()))

	ctx, span := e.tracer.Start(ctx, "walla.Export", trace.WithAttributes(
		attribute.String("report", req.Kind.Slug()),
		attribute.String("start", req.StartDate),
		attribute.String("end", req.EndDate),
	))
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.finish(span, req, logger, started, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		e.finish(span, req, logger, started, err)
	}()

	logger.Info("export started", zap.String("start", req.StartDate), zap.String("end", req.EndDate))

	launched := false
	err = browser.WithSession(ctx, e.launcher, browser.Options{SessionID: sessionID, ScaleFactor: req.ScaleFactor},
		func(ctx context.Context, s *browser.Session) error {
			launched = true

			navCtx, navSpan := e.tracer.Start(ctx, "walla.Navigate")
			navErr := newNavigator(s.Page, e.site, req, e.timeouts, logger).run(navCtx)
			endSpan(navSpan, navErr)
			if navErr != nil {
				return navErr
			}

			capCtx, capSpan := e.tracer.Start(ctx, "walla.Capture")
			res, capErr := capture(capCtx, s.Page, req, e.timeouts, logger)
			endSpan(capSpan, capErr)
			if capErr != nil {
				return capErr
			}
			result = res
			return nil
		})
	if err != nil && !launched {
		err = fmt.Errorf("%w: %w", ErrSessionLaunch, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Exporter) finish(span trace.Span, req models.ReportRequest, logger *zap.Logger, started time.Time, err error) {
	elapsed := time.Since(started)
	outcome := metrics.OutcomeSuccess

	switch {
	case err == nil:
		logger.Info("export finished", zap.Duration("elapsed", elapsed))
	case IsNoData(err):
		outcome = metrics.OutcomeNoData
		logger.Info("export found no data", zap.Duration("elapsed", elapsed), zap.Error(err))
	default:
		outcome = metrics.OutcomeFailed
		logger.Error("export failed", zap.String("code", Code(err)), zap.Duration("elapsed", elapsed), zap.Error(err))
	}

	e.metrics.ObserveExport(req.Kind.Slug(), outcome, elapsed)
	span.SetAttributes(attribute.String("outcome", outcome))
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
	}
	span.End()
}

func validate(req models.ReportRequest) error {
	if _, err := models.ParseReportKind(string(req.Kind)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.StartDate == "" || req.EndDate == "" {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRequest)
	}
	if req.Credentials.Empty() {
		return fmt.Errorf("%w: credentials are required", ErrInvalidRequest)
	}
	return nil
}

package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/couchcryptid/desalination-map/internal/pipeline"
	"github.com/couchcryptid/desalination-map/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render stages observed alongside the pipeline stages.
const (
	stageRender  = "render"
	stageCompose = "compose"
)

// Runner produces a fresh snapshot per request.
type Runner interface {
	sharedobs.ReadinessChecker
	Run(ctx context.Context) (domain.Snapshot, error)
}

// Server exposes the plot page plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	runner     Runner
	palette    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with /plot/, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, runner Runner, palette string, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		runner:  runner,
		palette: palette,
		logger:  logger,
		metrics: metrics,
	}

	mux.HandleFunc("GET /plot/", s.handlePlot)
	mux.Handle("GET /{$}", http.RedirectHandler("/plot/", http.StatusFound))
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(runner))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handlePlot runs the pipeline and renders the map. The page is rebuilt on
// every request.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runner.Run(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.renderPage(&buf, snap); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("write plot response", "error", err)
	}
	s.metrics.PlotRequests.WithLabelValues("success").Inc()
}

func (s *Server) renderPage(buf *bytes.Buffer, snap domain.Snapshot) error {
	start := time.Now()
	fig, err := render.NewFigure(snap.Rows, snap.Aggregates, s.palette)
	s.metrics.StageDuration.WithLabelValues(stageRender).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues(stageRender).Inc()
		return &pipeline.StageError{Stage: stageRender, Err: err}
	}

	start = time.Now()
	components, err := render.Embed(fig)
	if err == nil {
		err = render.WritePage(buf, render.Page{
			Components:  components,
			SourceURL:   snap.SourceURL,
			GeneratedAt: snap.GeneratedAt,
		})
	}
	s.metrics.StageDuration.WithLabelValues(stageCompose).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PipelineFailures.WithLabelValues(stageCompose).Inc()
		return &pipeline.StageError{Stage: stageCompose, Err: err}
	}
	return nil
}

// fail maps upstream failures to 502 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	stage := "unknown"
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	status, outcome := http.StatusInternalServerError, "error"
	if errors.Is(err, domain.ErrUpstream) {
		status, outcome = http.StatusBadGateway, "upstream_error"
	}
	s.metrics.PlotRequests.WithLabelValues(outcome).Inc()
	s.logger.Error("plot request failed",
		"stage", stage,
		"status", status,
		"path", r.URL.Path,
		"error", err,
	)
	http.Error(w, http.StatusText(status), status)
}

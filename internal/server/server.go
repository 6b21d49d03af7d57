package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/graphqa/internal/observability"
	"github.com/zero-day-ai/graphqa/internal/quality"
	"github.com/zero-day-ai/graphqa/internal/rag"
	"github.com/zero-day-ai/graphqa/internal/types"
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Response, error)
}

// FeedbackRecorder stores a user rating against an answered trace.
type FeedbackRecorder interface {
	Record(ctx context.Context, f quality.Feedback) error
}

// HealthChecker is any component that can report its health.
type HealthChecker interface {
	Health(ctx context.Context) types.HealthStatus
}

// Drainer waits for background work to finish.
type Drainer interface {
	Wait(ctx context.Context) error
}

// Dependencies are the collaborators the routes call into.
type Dependencies struct {
	Asker    Asker
	Feedback FeedbackRecorder

	// Components are polled by /health, keyed by the name reported.
	Components map[string]HealthChecker

	// Metrics serves /metrics. The route is absent when nil.
	Metrics http.Handler

	// Background is drained on shutdown after the listener stops.
	Background Drainer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	deps   Dependencies
	engine *gin.Engine
	logger *slog.Logger
	tracer trace.Tracer
}

// New builds the router. Asker is required.
func New(deps Dependencies, cfg Config, opts ...Option) (*Server, error) {
	if deps.Asker == nil {
		return nil, errors.New("server requires a question answerer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(observability.InstrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestID(), tracing(s.tracer), accessLog(s.logger))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.POST("/query", s.handleQuery)
	s.engine.POST("/feedback", s.handleFeedback)
	s.engine.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully and drains
// background scoring.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "address", s.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.deps.Background != nil {
		if err := s.deps.Background.Wait(shutdownCtx); err != nil {
			s.logger.Warn("background scoring did not drain", "error", err)
		}
	}
	return <-errCh
}

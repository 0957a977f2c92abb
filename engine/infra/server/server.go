package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/compozy/docqa/engine/infra/monitoring"
	"github.com/compozy/docqa/engine/infra/server/middleware/auth"
	"github.com/compozy/docqa/engine/infra/server/middleware/ratelimit"
	"github.com/compozy/docqa/engine/infra/server/middleware/requestid"
	"github.com/compozy/docqa/engine/infra/server/middleware/size"
	"github.com/compozy/docqa/pkg/config"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
)

const (
	httpReadHeaderTimeout     = 15 * time.Second
	httpReadTimeout           = 30 * time.Second
	httpIdleTimeout           = 60 * time.Second
	httpWriteTimeoutSlack     = 30 * time.Second
	monitoringShutdownTimeout = 5 * time.Second
	defaultShutdownTimeout    = 15 * time.Second
)

// Pipeline answers a batch of questions about one document.
type Pipeline interface {
	Process(ctx context.Context, documentURL string, questions []string) ([]string, error)
}

// Services reports which components were wired at startup.
type Services struct {
	DocumentProcessor bool
	Embedder          bool
	LLM               bool
}

// Info describes the running service on the informational endpoints.
type Info struct {
	Name     string
	Version  string
	Model    string
	Services Services
}

// Option customizes a Server.
type Option func(*Server)

// WithMonitoring mounts HTTP metrics and the exporter endpoint.
func WithMonitoring(svc *monitoring.Service) Option {
	return func(s *Server) {
		s.monitoring = svc
	}
}

// WithInfo overrides the informational endpoint payloads.
func WithInfo(info Info) Option {
	return func(s *Server) {
		s.info = info
	}
}

// Server is the HTTP front end of the question answering pipeline.
type Server struct {
	config     *config.Config
	pipeline   Pipeline
	monitoring *monitoring.Service
	info       Info
	router     *gin.Engine
}

// NewServer validates the server settings and builds the router.
func NewServer(ctx context.Context, cfg *config.Config, pipeline Pipeline, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: configuration is required")
	}
	if pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	s := &Server{
		config:   cfg,
		pipeline: pipeline,
		info: Info{
			Name:     "LLM Query-Retrieval System",
			Version:  monitoring.Version,
			Model:    cfg.LLM.Model,
			Services: Services{DocumentProcessor: true, Embedder: true, LLM: true},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.buildRouter(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) buildRouter(ctx context.Context) error {
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(LoggerMiddleware())
	r.Use(RecoveryMiddleware())
	if s.config.Server.CORSEnabled {
		r.Use(CORSMiddleware())
	}
	if s.monitoring != nil {
		r.Use(s.monitoring.GinMiddleware(ctx))
		if s.monitoring.IsInitialized() {
			r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
		}
	}
	r.GET(RouteRoot, s.handleRoot)
	r.GET(RouteHealth, s.handleHealth)
	r.GET(RouteStatus, s.handleStatus)
	api, err := s.apiMiddleware(ctx)
	if err != nil {
		return err
	}
	for _, path := range RunRoutes() {
		handlers := append(append([]gin.HandlerFunc{}, api...), s.handleRun)
		r.POST(path, handlers...)
	}
	s.router = r
	return nil
}

func (s *Server) apiMiddleware(ctx context.Context) ([]gin.HandlerFunc, error) {
	var chain []gin.HandlerFunc
	if rl := s.config.RateLimit; rl.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		rlCfg.Rate = ratelimit.RateConfig{Limit: rl.Limit, Period: rl.Period}
		manager, err := ratelimit.NewManagerWithMetrics(ctx, rlCfg, s.meter())
		if err != nil {
			return nil, fmt.Errorf("server: rate limiter: %w", err)
		}
		chain = append(chain, manager.Middleware())
	}
	if s.config.Server.Auth.Enabled {
		manager, err := auth.NewManager(s.config.Server.Auth.Token.Value())
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		chain = append(chain, manager.Middleware())
	} else {
		logger.FromContext(ctx).Warn("Bearer authentication is disabled")
	}
	chain = append(chain, size.BodySizeLimiter(s.config.Server.MaxBodyBytes))
	return chain, nil
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Run listens on the configured address until ctx ends or SIGINT/SIGTERM arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.FromContext(ctx)
	baseCtx := context.WithoutCancel(ctx)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: httpReadHeaderTimeout,
		ReadTimeout:       httpReadTimeout,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       httpIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("Shutting down HTTP server")
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(baseCtx, timeout)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server: shutdown: %w", err))
	}
	if s.monitoring != nil {
		monCtx, monCancel := context.WithTimeout(baseCtx, monitoringShutdownTimeout)
		defer monCancel()
		if err := s.monitoring.Shutdown(monCtx); err != nil {
			errs = append(errs, fmt.Errorf("server: monitoring shutdown: %w", err))
		}
	}
	log.Info("HTTP server stopped")
	return errors.Join(errs...)
}

func (s *Server) writeTimeout() time.Duration {
	if s.config.Server.Timeout <= 0 {
		return 0
	}
	return s.config.Server.Timeout + httpWriteTimeoutSlack
}

func (s *Server) meter() metric.Meter {
	if s.monitoring == nil || !s.monitoring.IsInitialized() {
		return nil
	}
	return s.monitoring.Meter()
}

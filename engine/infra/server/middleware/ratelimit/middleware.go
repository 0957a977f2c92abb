package ratelimit

import (
	"context"
	"net/http"

	"github.com/compozy/docqa/engine/infra/server/router"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/otel/metric"
)

// Manager owns the in-memory limiter shared by every request on a route group.
type Manager struct {
	limiter *limiter.Limiter
	blocks  *blockCounter
}

// NewManager builds a manager backed by the in-memory store.
func NewManager(cfg *Config) (*Manager, error) {
	return NewManagerWithMetrics(context.Background(), cfg, nil)
}

// NewManagerWithMetrics builds a manager and registers the blocked-requests counter on meter.
func NewManagerWithMetrics(ctx context.Context, cfg *Config, meter metric.Meter) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: cfg.Prefix})
	opts := []limiter.Option{}
	if cfg.TrustForwardHeader {
		opts = append(opts, limiter.WithTrustForwardHeader(true))
	}
	blocks, err := newBlockCounter(meter)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize rate limit metrics", "error", err)
	}
	return &Manager{
		limiter: limiter.New(store, cfg.Rate.ToLimiterRate(), opts...),
		blocks:  blocks,
	}, nil
}

// Middleware returns the gin middleware keyed by client IP.
func (m *Manager) Middleware() gin.HandlerFunc {
	return mgin.NewMiddleware(
		m.limiter,
		mgin.WithLimitReachedHandler(m.limitReached),
		mgin.WithErrorHandler(m.limiterError),
		mgin.WithKeyGetter(m.key),
	)
}

func (m *Manager) key(c *gin.Context) string {
	return m.limiter.GetIPKey(c.Request)
}

func (m *Manager) limitReached(c *gin.Context) {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	m.blocks.increment(c.Request.Context(), route)
	router.RespondProblemWithCode(c, http.StatusTooManyRequests, router.CodeRateLimited, "Rate limit exceeded")
}

func (m *Manager) limiterError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Error("Rate limiter failed", "error", err)
	router.RespondProblemWithCode(c, http.StatusInternalServerError, router.CodeInternal, "Rate limiter unavailable")
}

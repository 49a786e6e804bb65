package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lineage/internal/config"
	"lineage/internal/domain"
	"lineage/internal/infra/interchange"
	"lineage/internal/infra/metrics"
	"lineage/internal/infra/ratelimit"
	"lineage/internal/usecase"
)

const maxReportBytes = 32 << 20

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger *zap.Logger

	lineage *usecase.LineageService
	codec   *interchange.Codec
	metrics *metrics.Views
	mode    string

	adminAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
	rateLimitViewerMax  int
}

type ServerDeps struct {
	Lineage     *usecase.LineageService
	Codec       *interchange.Codec
	Metrics     *metrics.Views
	RateLimiter domain.RateLimiter
	Logger      *zap.Logger
	// Mode is reported by /healthz, "db" or "memory".
	Mode string
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:         cfg,
		r:           r,
		logger:      logger,
		lineage:     deps.Lineage,
		codec:       deps.Codec,
		metrics:     deps.Metrics,
		mode:        deps.Mode,
		adminAPIKey: cfg.AdminAPIKey,
	}
	if s.codec == nil {
		s.codec = interchange.NewCodec(logger)
	}
	if s.mode == "" {
		s.mode = "memory"
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	s.rateLimiter = override
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
			if err == nil {
				s.rateLimiter = limiter
			} else {
				s.logger.Warn("redis rate limiter unavailable, using memory", zap.Error(err))
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxKeys: s.cfg.RateLimitMaxKeys})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
	s.rateLimitViewerMax = s.cfg.RateLimitViewerMaxLen
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.mode})
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := s.r.Group("/v1")
	{
		v1.GET("/graph/:oid", s.handleGraph)
		v1.GET("/nodes/:oid/fling", s.handleFling)
		v1.GET("/nodes/:oid/taints", s.handleTaints)
		v1.POST("/nodes/:oid/taints", s.handleMark)
		v1.GET("/search", s.handleSearch)
		v1.GET("/actors", s.handleActors)
		v1.GET("/workflows", s.handleWorkflows)
		v1.GET("/workflows/:workflow_id/members", s.handleWorkflowMembers)
		v1.GET("/privileges/dominates", s.handleDominates)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	s.logger.Info("listening", zap.String("addr", s.cfg.HTTPAddr), zap.String("mode", s.mode))
	return s.r.Run(s.cfg.HTTPAddr)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}

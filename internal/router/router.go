package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jwalitptl/farm-calendar/internal/handler"
	"github.com/jwalitptl/farm-calendar/internal/middleware"
	"github.com/jwalitptl/farm-calendar/pkg/auth"
	"github.com/jwalitptl/farm-calendar/pkg/logger"
)

// Handler is a domain handler that mounts its routes. protect authenticates
// admin callers; each handler decides which of its routes need it.
type Handler interface {
	RegisterRoutes(r gin.IRouter, protect ...gin.HandlerFunc)
}

// HealthHandler mounts /health/live and /health/ready.
type HealthHandler interface {
	RegisterRoutes(r gin.IRouter)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	h       *handler.Handler
	health  HealthHandler
	domain  []Handler
	cfg     RouterConfig
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	MetricsPrefix string
	MetricsPath   string
	Registerer    prometheus.Registerer
	Gatherer      prometheus.Gatherer
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	health HealthHandler,
	log *logger.Logger,
	config RouterConfig,
	domain ...Handler,
) *Router {
	engine := gin.New()

	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "farm_calendar_http"
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	r := &Router{
		engine:  engine,
		auth:    auth,
		h:       handler.NewHandler(config.Gatherer),
		health:  health,
		domain:  domain,
		cfg:     config,
		metrics: initRouterMetrics(config.Registerer, config.MetricsPrefix),
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		r.metricsMiddleware(),
	)

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	r.engine.GET(r.cfg.MetricsPath, r.h.MetricsHandler())

	api := r.engine.Group("/api/v1")
	api.Use(middleware.SecurityHeaders(middleware.DefaultSecurityConfig()))

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	protect := []gin.HandlerFunc{
		r.auth.Authenticate(),
		r.auth.RequireRole(auth.RoleAdmin),
	}
	for _, h := range r.domain {
		h.RegisterRoutes(api, protect...)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Metrics initialization and middleware
func initRouterMetrics(reg prometheus.Registerer, prefix string) *routerMetrics {
	factory := promauto.With(reg)
	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}

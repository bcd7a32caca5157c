// Package http is the HTTP gateway in front of the bridge services.
package http

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tgbridge/internal/bridge/ports"
	"tgbridge/internal/observability"
	"tgbridge/internal/shared/logging"
)

// DefaultMaxBodyBytes caps the /send request body.
const DefaultMaxBodyBytes int64 = 128 << 10

// HealthChecker answers the Telegram liveness probe.
type HealthChecker interface {
	CheckHealth(ctx context.Context) ports.HealthResult
}

// MessageSender delivers a validated message.
type MessageSender interface {
	Send(ctx context.Context, chat ports.ChatRef, text string) error
}

// RouterConfig holds the gateway's HTTP-level settings.
type RouterConfig struct {
	// Token enables the bearer check on /send when non-empty.
	Token          string
	MaxBodyBytes   int64
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	MetricsEnabled bool
	GinMode        string
}

// RouterDeps wires the gateway to the bridge services.
type RouterDeps struct {
	Health  HealthChecker
	Sender  MessageSender
	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracer  *observability.TracerProvider
	Config  RouterConfig
}

// NewRouter builds the gin engine serving the bridge API.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	logger := logging.OrNop(deps.Logger)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(RequestIDMiddleware(logger))
	engine.Use(ObservabilityMiddleware(deps.Tracer, deps.Metrics))
	engine.Use(RecoveryMiddleware())

	if len(cfg.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		if slices.Contains(cfg.CORSOrigins, "*") {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = cfg.CORSOrigins
		}
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
		corsConfig.ExposeHeaders = []string{RequestIDHeader}
		engine.Use(cors.New(corsConfig))
	}

	h := &handlers{health: deps.Health, sender: deps.Sender, maxBodyBytes: cfg.MaxBodyBytes}

	engine.GET("/health", h.handleHealth)
	engine.GET("/health/telegram", h.handleTelegramHealth)
	engine.POST("/send",
		RateLimitMiddleware(cfg.RateLimit, deps.Metrics),
		BearerAuthMiddleware(cfg.Token),
		h.handleSend,
	)
	if cfg.MetricsEnabled && deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{OK: false, Error: "Not found"})
	})
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{OK: false, Error: "Method not allowed"})
	})

	return engine
}

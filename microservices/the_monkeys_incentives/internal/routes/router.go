// Package routes exposes the HTTP surface of the incentives service.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/the-monkeys/incentives/config"
	"go.uber.org/zap"
)

type Deps struct {
	Campaigns   CampaignStore
	Limits      LimitStore
	Rules       RuleValidator
	Publisher   EventPublisher
	Processor   EventProcessor
	Hot         HotMetrics
	Subscribers SubscriberCounter
	// WebSocket serves incentive streams.
	WebSocket gin.HandlerFunc
	// Ready reports dependency health for /healthz.
	Ready func(*gin.Context) error
}

// NewRouter assembles the gin engine with middleware and every route group.
func NewRouter(cfg *config.Config, deps Deps, log *zap.SugaredLogger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(SecureMiddleware())

	if cfg.Cors.UseTempCors {
		log.Debug("using temporary CORS middleware (allow all origins)")
		router.Use(TmpCORSMiddleware())
	} else {
		log.Debug("using strict CORS middleware (regex)")
		router.Use(CORSMiddleware(cfg.Cors.AllowedOriginExp, log))
	}

	api := router.Group("/api/v1")
	if cfg.Incentives.APIRateLimit != "" {
		limiter, err := RateLimiterMiddleware(cfg.Incentives.APIRateLimit)
		if err != nil {
			return nil, err
		}
		api.Use(limiter)
	}

	RegisterCampaignRouter(api, deps.Campaigns, deps.Rules, log)
	RegisterLimitRouter(api, deps.Limits, log)
	RegisterEventRouter(api, router.Group("/helper"), deps.Publisher, deps.Processor, log)
	RegisterSystemRouter(api, cfg.Incentives.SystemKey, deps.Hot, deps.Subscribers, log)

	if deps.WebSocket != nil {
		router.GET("/ws/incentives", deps.WebSocket)
	}

	router.GET("/healthz", func(c *gin.Context) {
		if deps.Ready != nil {
			if err := deps.Ready(c); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return router, nil
}

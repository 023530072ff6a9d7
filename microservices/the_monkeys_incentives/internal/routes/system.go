package routes

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HotMetrics interface {
	TotalHotCampaigns(ctx context.Context) (int64, error)
	HotCampaigns(ctx context.Context, tenantID uuid.UUID) ([]string, error)
}

// SubscriberCounter reports live websocket connections.
type SubscriberCounter interface {
	Subscribers() int
}

type SystemHandler struct {
	hot         HotMetrics
	subscribers SubscriberCounter
	started     time.Time
	log         *zap.SugaredLogger
}

func RegisterSystemRouter(api gin.IRouter, systemKey string, hot HotMetrics, subscribers SubscriberCounter, log *zap.SugaredLogger) *SystemHandler {
	h := &SystemHandler{hot: hot, subscribers: subscribers, started: time.Now(), log: log}

	systemRoutes := api.Group("/system")
	systemRoutes.Use(SystemKeyMiddleware(systemKey, log))
	systemRoutes.GET("/metrics", h.GetSystemMetrics)

	return h
}

// GetSystemMetrics reports hot-campaign counts and process statistics.
// With tenant_id it also lists that tenant's hot campaigns.
func (h *SystemHandler) GetSystemMetrics(ctx *gin.Context) {
	h.log.Infof("System metrics requested from IP: %s", ctx.ClientIP())

	total, err := h.hot.TotalHotCampaigns(ctx.Request.Context())
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	body := gin.H{
		"hot_campaigns": total,
		"runtime": gin.H{
			"goroutines":     runtime.NumGoroutine(),
			"heap_alloc_mb":  memStats.HeapAlloc / 1024 / 1024,
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
		},
		"timestamp": time.Now().UTC(),
	}
	if h.subscribers != nil {
		body["websocket_subscribers"] = h.subscribers.Subscribers()
	}

	if raw := ctx.Query("tenant_id"); raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant_id"})
			return
		}
		ids, err := h.hot.HotCampaigns(ctx.Request.Context(), tenantID)
		if err != nil {
			respondError(ctx, h.log, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		body["tenant_hot_campaigns"] = ids
	}

	ctx.JSON(http.StatusOK, body)
}

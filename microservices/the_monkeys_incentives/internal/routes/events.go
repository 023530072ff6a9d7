package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/evaluation"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// maxGenerate bounds a single load-helper request.
const maxGenerate = 100_000

type EventPublisher interface {
	Publish(ctx context.Context, event models.ActionEvent) error
	Generate(ctx context.Context, tenantID uuid.UUID, action string, count int) (int, error)
}

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event models.ActionEvent) (evaluation.Result, error)
}

type EventHandler struct {
	publisher EventPublisher
	processor EventProcessor
	log       *zap.SugaredLogger
}

func RegisterEventRouter(api gin.IRouter, helper gin.IRouter, publisher EventPublisher, processor EventProcessor, log *zap.SugaredLogger) *EventHandler {
	h := &EventHandler{publisher: publisher, processor: processor, log: log}

	routes := api.Group("/events")
	routes.POST("", h.PublishEvent)
	routes.POST("/evaluate", h.EvaluateEvent)

	helper.POST("/generate", h.GenerateEvents)

	return h
}

// PublishEvent queues an event for asynchronous evaluation.
func (h *EventHandler) PublishEvent(ctx *gin.Context) {
	var event models.ActionEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := event.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.publisher.Publish(ctx.Request.Context(), event); err != nil {
		h.log.Errorw("failed to publish event", "tenant_id", event.TenantID, "action", event.ActionCode, "err", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue unavailable"})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// EvaluateEvent runs the pipeline inline and returns what was issued.
func (h *EventHandler) EvaluateEvent(ctx *gin.Context) {
	var event models.ActionEvent
	if err := ctx.ShouldBindJSON(&event); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.processor.ProcessEvent(ctx.Request.Context(), event)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if res.Issued == nil {
		res.Issued = []evaluation.Issued{}
	}
	ctx.JSON(http.StatusOK, res)
}

// GenerateEvents publishes synthetic events from random users for load testing.
func (h *EventHandler) GenerateEvents(ctx *gin.Context) {
	tenantID, ok := tenantQuery(ctx)
	if !ok {
		return
	}
	action := strings.TrimSpace(ctx.Query("action"))
	if action == "" {
		respondError(ctx, h.log, fmt.Errorf("%w: action query parameter is required", errValidation))
		return
	}
	count, err := strconv.Atoi(ctx.DefaultQuery("count", "1000"))
	if err != nil || count <= 0 || count > maxGenerate {
		respondError(ctx, h.log, fmt.Errorf("%w: count must be between 1 and %d", errValidation, maxGenerate))
		return
	}

	published, err := h.publisher.Generate(ctx.Request.Context(), tenantID, action, count)
	if err != nil {
		h.log.Errorw("event generation interrupted", "published", published, "err", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue unavailable", "published": published})
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"published": published})
}

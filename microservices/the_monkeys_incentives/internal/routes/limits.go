package routes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

type LimitStore interface {
	CreateLimit(ctx context.Context, l models.Limit) error
	GetLimit(ctx context.Context, id uuid.UUID) (models.Limit, error)
	UpdateLimit(ctx context.Context, id uuid.UUID, capacity int64, status models.LimitStatus) error
	ListLimits(ctx context.Context, tenantID uuid.UUID) ([]models.Limit, error)
}

type CreateLimitRequest struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	ActionCode string    `json:"code"`
	Cap        int64     `json:"cap"`
	Window     string    `json:"window"`
}

type UpdateLimitRequest struct {
	Cap    *int64              `json:"cap"`
	Status *models.LimitStatus `json:"status"`
}

type LimitHandler struct {
	store LimitStore
	log   *zap.SugaredLogger
}

func RegisterLimitRouter(router gin.IRouter, store LimitStore, log *zap.SugaredLogger) *LimitHandler {
	h := &LimitHandler{store: store, log: log}

	routes := router.Group("/limits")
	routes.POST("", h.CreateLimit)
	routes.GET("", h.ListLimits)
	routes.GET("/:id", h.GetLimit)
	routes.PUT("/:id", h.UpdateLimit)

	return h
}

func (h *LimitHandler) CreateLimit(ctx *gin.Context) {
	var req CreateLimitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l := models.Limit{
		ID:         uuid.New(),
		TenantID:   req.TenantID,
		ActionCode: strings.TrimSpace(req.ActionCode),
		Cap:        req.Cap,
		Window:     strings.ToUpper(strings.TrimSpace(req.Window)),
		Status:     models.LimitActive,
	}
	if l.Window == "" {
		l.Window = models.WindowDaily
	}
	switch {
	case l.TenantID == uuid.Nil:
		respondError(ctx, h.log, fmt.Errorf("%w: tenant_id is required", errValidation))
		return
	case l.ActionCode == "":
		respondError(ctx, h.log, fmt.Errorf("%w: code is required", errValidation))
		return
	case l.Cap < 0:
		respondError(ctx, h.log, fmt.Errorf("%w: cap must not be negative", errValidation))
		return
	}

	if err := h.store.CreateLimit(ctx.Request.Context(), l); err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusCreated, l)
}

func (h *LimitHandler) GetLimit(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	l, err := h.store.GetLimit(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusOK, l)
}

func (h *LimitHandler) ListLimits(ctx *gin.Context) {
	tenantID, ok := tenantQuery(ctx)
	if !ok {
		return
	}
	limits, err := h.store.ListLimits(ctx.Request.Context(), tenantID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if limits == nil {
		limits = []models.Limit{}
	}
	ctx.JSON(http.StatusOK, gin.H{"limits": limits})
}

func (h *LimitHandler) UpdateLimit(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req UpdateLimitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.store.GetLimit(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if req.Cap != nil {
		l.Cap = *req.Cap
	}
	if req.Status != nil {
		l.Status = *req.Status
	}
	if l.Cap < 0 {
		respondError(ctx, h.log, fmt.Errorf("%w: cap must not be negative", errValidation))
		return
	}
	if l.Status != models.LimitActive && l.Status != models.LimitPaused {
		respondError(ctx, h.log, fmt.Errorf("%w: unsupported limit status %q", errValidation, l.Status))
		return
	}

	if err := h.store.UpdateLimit(ctx.Request.Context(), id, l.Cap, l.Status); err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusOK, l)
}

package routes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c models.Campaign) error
	GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error)
	UpdateCampaign(ctx context.Context, c models.Campaign) error
	SetCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error
	ListCampaigns(ctx context.Context, tenantID uuid.UUID) ([]models.Campaign, error)
	ActionsForUserCampaign(ctx context.Context, userID, campaignID uuid.UUID) ([]models.Aggregation, error)
}

// RuleValidator rejects rule lists naming kinds no handler is registered for.
type RuleValidator interface {
	Validate(rules []models.Rule) error
}

type CreateCampaignRequest struct {
	TenantID        uuid.UUID             `json:"tenant_id"`
	Name            string                `json:"name"`
	Type            models.CampaignType   `json:"type"`
	Status          models.CampaignStatus `json:"status"`
	Rules           []models.Rule         `json:"rules"`
	ActionCodes     []string              `json:"action_codes"`
	RequiredActions []string              `json:"required_actions"`
	StartAt         *time.Time            `json:"start_at"`
	EndAt           *time.Time            `json:"end_at"`
}

type UpdateCampaignRequest struct {
	Name            *string                `json:"name"`
	Status          *models.CampaignStatus `json:"status"`
	Rules           *[]models.Rule         `json:"rules"`
	ActionCodes     *[]string              `json:"action_codes"`
	RequiredActions *[]string              `json:"required_actions"`
	EndAt           *time.Time             `json:"end_at"`
}

type CampaignHandler struct {
	store     CampaignStore
	validator RuleValidator
	now       func() time.Time
	log       *zap.SugaredLogger
}

func RegisterCampaignRouter(router gin.IRouter, store CampaignStore, validator RuleValidator, log *zap.SugaredLogger) *CampaignHandler {
	h := &CampaignHandler{store: store, validator: validator, now: time.Now, log: log}

	routes := router.Group("/campaigns")
	routes.POST("", h.CreateCampaign)
	routes.GET("", h.ListCampaigns)
	routes.GET("/:id", h.GetCampaign)
	routes.PUT("/:id", h.UpdateCampaign)
	routes.POST("/:id/activate", h.setStatus(models.CampaignActive))
	routes.POST("/:id/pause", h.setStatus(models.CampaignPaused))
	routes.GET("/:id/users/:user_id/actions", h.ActionsForUserCampaign)

	return h
}

func (h *CampaignHandler) CreateCampaign(ctx *gin.Context) {
	var req CreateCampaignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c := models.Campaign{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		Name:            strings.TrimSpace(req.Name),
		Type:            req.Type,
		Status:          req.Status,
		Rules:           req.Rules,
		ActionCodes:     req.ActionCodes,
		RequiredActions: req.RequiredActions,
		CreatedAt:       h.now().UTC(),
	}
	if c.Status == "" {
		c.Status = models.CampaignDraft
	}
	if req.StartAt != nil {
		c.StartAt = *req.StartAt
	}
	if req.EndAt != nil {
		c.EndAt = *req.EndAt
	}
	if err := h.validate(c); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	if err := h.store.CreateCampaign(ctx.Request.Context(), c); err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusCreated, c)
}

func (h *CampaignHandler) GetCampaign(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	c, err := h.store.GetCampaign(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusOK, c)
}

func (h *CampaignHandler) ListCampaigns(ctx *gin.Context) {
	tenantID, ok := tenantQuery(ctx)
	if !ok {
		return
	}
	campaigns, err := h.store.ListCampaigns(ctx.Request.Context(), tenantID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	ctx.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h *CampaignHandler) UpdateCampaign(ctx *gin.Context) {
	id, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	var req UpdateCampaignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c, err := h.store.GetCampaign(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.Rules != nil {
		c.Rules = *req.Rules
	}
	if req.ActionCodes != nil {
		c.ActionCodes = *req.ActionCodes
	}
	if req.RequiredActions != nil {
		c.RequiredActions = *req.RequiredActions
	}
	if req.EndAt != nil {
		c.EndAt = *req.EndAt
	}
	if err := h.validate(c); err != nil {
		respondError(ctx, h.log, err)
		return
	}

	if err := h.store.UpdateCampaign(ctx.Request.Context(), c); err != nil {
		respondError(ctx, h.log, err)
		return
	}
	ctx.JSON(http.StatusOK, c)
}

func (h *CampaignHandler) setStatus(status models.CampaignStatus) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := uuidParam(ctx, "id")
		if !ok {
			return
		}
		if err := h.store.SetCampaignStatus(ctx.Request.Context(), id, status); err != nil {
			respondError(ctx, h.log, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"id": id, "status": status})
	}
}

func (h *CampaignHandler) ActionsForUserCampaign(ctx *gin.Context) {
	campaignID, ok := uuidParam(ctx, "id")
	if !ok {
		return
	}
	userID, ok := uuidParam(ctx, "user_id")
	if !ok {
		return
	}
	actions, err := h.store.ActionsForUserCampaign(ctx.Request.Context(), userID, campaignID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	if actions == nil {
		actions = []models.Aggregation{}
	}
	ctx.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (h *CampaignHandler) validate(c models.Campaign) error {
	switch {
	case c.TenantID == uuid.Nil:
		return fmt.Errorf("%w: tenant_id is required", errValidation)
	case c.Name == "":
		return fmt.Errorf("%w: name is required", errValidation)
	case !c.Type.Valid():
		return fmt.Errorf("%w: unsupported campaign type %q", errValidation, c.Type)
	case !c.Status.Valid():
		return fmt.Errorf("%w: unsupported campaign status %q", errValidation, c.Status)
	case c.Type == models.CampaignQuest && len(c.RequiredActions) == 0:
		return fmt.Errorf("%w: quest campaigns need required_actions", errValidation)
	case !c.StartAt.IsZero() && !c.EndAt.IsZero() && c.EndAt.Before(c.StartAt):
		return fmt.Errorf("%w: end_at is before start_at", errValidation)
	}
	return h.validator.Validate(c.Rules)
}

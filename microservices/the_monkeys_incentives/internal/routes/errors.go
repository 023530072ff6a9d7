package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/database"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/evaluation"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/rules"
	"go.uber.org/zap"
)

var errValidation = errors.New("validation failed")

func respondError(ctx *gin.Context, log *zap.SugaredLogger, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errValidation), errors.Is(err, evaluation.ErrInvalidEvent):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, rules.ErrUnknownRuleType):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Errorw("request failed", "path", ctx.FullPath(), "err", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func uuidParam(ctx *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func tenantQuery(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Query("tenant_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter is required"})
		return uuid.Nil, false
	}
	return id, true
}

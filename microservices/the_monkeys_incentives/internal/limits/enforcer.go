// Package limits enforces per-tenant, per-action, per-user caps over rolling windows.
package limits

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/constants"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// Source lists the limits configured for a tenant.
type Source interface {
	ListLimits(ctx context.Context, tenantID uuid.UUID) ([]models.Limit, error)
}

type Enforcer struct {
	limits Source
	store  counter.Store
	log    *zap.SugaredLogger
}

func NewEnforcer(limits Source, store counter.Store, log *zap.SugaredLogger) *Enforcer {
	return &Enforcer{limits: limits, store: store, log: log}
}

// CheckAndConsume counts the event against every ACTIVE limit for its action
// and reports whether all of them are still within cap. It stops at the first
// exceeded limit. Quota consumed by limits checked before a rejection is not
// given back.
func (e *Enforcer) CheckAndConsume(ctx context.Context, event models.ActionEvent) (bool, error) {
	all, err := e.limits.ListLimits(ctx, event.TenantID)
	if err != nil {
		return false, fmt.Errorf("list limits for tenant %s: %w", event.TenantID, err)
	}

	for _, l := range all {
		if l.ActionCode != event.ActionCode {
			continue
		}
		if !strings.EqualFold(string(l.Status), string(models.LimitActive)) {
			continue
		}

		key := fmt.Sprintf(constants.LimitCounterKey, l.ID, event.UserID)
		count, err := e.store.Increment(ctx, key, models.WindowTTL(l.Window))
		if err != nil {
			return false, fmt.Errorf("limit %s: %w", l.ID, err)
		}
		if count > l.Cap {
			e.log.Infow("[LIMIT] cap reached",
				"limit_id", l.ID, "user_id", event.UserID, "action", event.ActionCode,
				"count", count, "cap", l.Cap)
			return false, nil
		}
	}
	return true, nil
}

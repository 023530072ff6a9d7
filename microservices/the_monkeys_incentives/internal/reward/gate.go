package reward

import (
	"context"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
)

// AggregationGate decides whether quest completion tracking runs for a campaign
// on this event. It is consulted before the completion set is touched.
type AggregationGate interface {
	AllowAggregation(ctx context.Context, campaign models.Campaign) (bool, error)
}

// HotChecker is the read side of the hot-campaign detector.
type HotChecker interface {
	IsHotCampaign(ctx context.Context, tenantID, campaignID uuid.UUID) (bool, error)
}

// HotGate only lets hot campaigns aggregate. Completion for cold campaigns
// is deferred until they turn hot.
type HotGate struct {
	Hot HotChecker
}

func (g HotGate) AllowAggregation(ctx context.Context, campaign models.Campaign) (bool, error) {
	return g.Hot.IsHotCampaign(ctx, campaign.TenantID, campaign.ID)
}

// AlwaysGate tracks completion for every campaign.
type AlwaysGate struct{}

func (AlwaysGate) AllowAggregation(context.Context, models.Campaign) (bool, error) {
	return true, nil
}

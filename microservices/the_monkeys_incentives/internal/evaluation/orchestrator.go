// Package evaluation composes limits, rules and the reward state machine into
// the per-event decision pipeline.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/rules"
	"go.uber.org/zap"
)

// ErrInvalidEvent marks events that can never be processed.
var ErrInvalidEvent = errors.New("invalid action event")

type CampaignFinder interface {
	FindActiveCampaigns(ctx context.Context, tenantID uuid.UUID, actionCode string) ([]models.Campaign, error)
}

type IncentiveSaver interface {
	SaveIncentive(ctx context.Context, inc models.Incentive) error
}

// Notifier is fire-and-forget. Its errors are logged and never fail the event.
type Notifier interface {
	Broadcast(ctx context.Context, inc models.Incentive, userID uuid.UUID, campaignName string) error
}

type LimitChecker interface {
	CheckAndConsume(ctx context.Context, event models.ActionEvent) (bool, error)
}

type RuleEvaluator interface {
	EvaluateAll(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, rules []models.Rule) (bool, error)
}

type RewardMachine interface {
	Process(ctx context.Context, event models.ActionEvent, campaign models.Campaign) (*models.Incentive, error)
}

// Policy holds the tunable pipeline behavior.
type Policy struct {
	// LimitAbortsEvent stops the whole event on the first limit rejection
	// instead of skipping only the rejected campaign.
	LimitAbortsEvent bool
}

type Deps struct {
	Campaigns  CampaignFinder
	Incentives IncentiveSaver
	Notifier   Notifier
	Limits     LimitChecker
	Rules      RuleEvaluator
	Rewards    RewardMachine
}

// Issued is one incentive granted while processing an event.
type Issued struct {
	CampaignID   uuid.UUID        `json:"campaign_id"`
	CampaignName string           `json:"campaign_name"`
	Incentive    models.Incentive `json:"incentive"`
}

// Result summarises a processed event.
type Result struct {
	Candidates int      `json:"candidates"`
	Issued     []Issued `json:"issued"`
	Aborted    bool     `json:"aborted,omitempty"`
}

type Orchestrator struct {
	deps   Deps
	policy Policy
	now    func() time.Time
	log    *zap.SugaredLogger
}

func NewOrchestrator(deps Deps, policy Policy, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{deps: deps, policy: policy, now: time.Now, log: log}
}

// ProcessEvent evaluates event against every active campaign for its tenant
// and action. The first collaborator failure stops the event and is returned.
func (o *Orchestrator) ProcessEvent(ctx context.Context, event models.ActionEvent) (Result, error) {
	var res Result
	if err := event.Validate(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	found, err := o.deps.Campaigns.FindActiveCampaigns(ctx, event.TenantID, event.ActionCode)
	if err != nil {
		return res, fmt.Errorf("find active campaigns: %w", err)
	}
	// The finder's snapshot may be stale by the time the event is handled.
	now := o.now()
	campaigns := make([]models.Campaign, 0, len(found))
	for _, c := range found {
		if c.ActiveAt(now) {
			campaigns = append(campaigns, c)
		} else {
			o.log.Debugw("campaign no longer active, skipped", "campaign_id", c.ID, "status", c.Status)
		}
	}
	res.Candidates = len(campaigns)
	if len(campaigns) == 0 {
		o.log.Debugw("no active campaigns", "tenant_id", event.TenantID, "action", event.ActionCode)
		return res, nil
	}

	for _, campaign := range campaigns {
		allowed, err := o.deps.Limits.CheckAndConsume(ctx, event)
		if err != nil {
			return res, fmt.Errorf("limits for campaign %s: %w", campaign.ID, err)
		}
		if !allowed {
			if o.policy.LimitAbortsEvent {
				o.log.Infow("[LIMIT] event aborted", "user_id", event.UserID, "action", event.ActionCode, "campaign_id", campaign.ID)
				res.Aborted = true
				return res, nil
			}
			o.log.Infow("[LIMIT] campaign skipped", "user_id", event.UserID, "action", event.ActionCode, "campaign_id", campaign.ID)
			continue
		}

		pass, err := o.deps.Rules.EvaluateAll(ctx, event, campaign.ID, campaign.Rules)
		if err != nil {
			return res, err
		}
		if !pass {
			o.log.Infow("[RULE] campaign rules not satisfied", "user_id", event.UserID, "campaign_id", campaign.ID)
			continue
		}

		inc, err := o.deps.Rewards.Process(ctx, event, campaign)
		if inc != nil {
			if serr := o.issue(ctx, event, campaign, *inc); serr != nil {
				return res, errors.Join(serr, err)
			}
			res.Issued = append(res.Issued, Issued{CampaignID: campaign.ID, CampaignName: campaign.Name, Incentive: *inc})
		}
		if err != nil {
			return res, fmt.Errorf("reward for campaign %s: %w", campaign.ID, err)
		}
	}
	return res, nil
}

func (o *Orchestrator) issue(ctx context.Context, event models.ActionEvent, campaign models.Campaign, inc models.Incentive) error {
	if err := o.deps.Incentives.SaveIncentive(ctx, inc); err != nil {
		return fmt.Errorf("save incentive %s: %w", inc.ID, err)
	}
	if o.deps.Notifier == nil {
		return nil
	}
	if err := o.deps.Notifier.Broadcast(ctx, inc, event.UserID, campaign.Name); err != nil {
		o.log.Warnw("incentive notification dropped", "incentive_id", inc.ID, "user_id", event.UserID, "err", err)
	}
	return nil
}

// IsRetryable reports whether redelivering the event could succeed. Invalid
// events and unknown rule kinds fail the same way every time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrInvalidEvent) && !errors.Is(err, rules.ErrUnknownRuleType)
}

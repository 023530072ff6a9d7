// Package reward holds the per-campaign-type reward state machine.
package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/constants"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// QuestTTL bounds the fast-path quest set and the completion marker.
const QuestTTL = 30 * 24 * time.Hour

// AggregationWriter appends to a user's quest history.
type AggregationWriter interface {
	SaveAggregation(ctx context.Context, agg models.Aggregation) error
}

// Amounts is the reward issued per campaign type.
type Amounts struct {
	Type     string
	Currency string
	Simple   float64
	Quest    float64
}

func DefaultAmounts() Amounts {
	return Amounts{Type: constants.IncentiveCashback, Currency: "USD", Simple: 10.0, Quest: 50.0}
}

type Machine struct {
	store        counter.Store
	aggregations AggregationWriter
	gate         AggregationGate
	amounts      Amounts
	newID        func() uuid.UUID
	now          func() time.Time
	log          *zap.SugaredLogger
}

func NewMachine(store counter.Store, aggregations AggregationWriter, gate AggregationGate, amounts Amounts, log *zap.SugaredLogger) *Machine {
	return &Machine{
		store:        store,
		aggregations: aggregations,
		gate:         gate,
		amounts:      amounts,
		newID:        uuid.New,
		now:          time.Now,
		log:          log,
	}
}

// Process advances the campaign state for a qualifying event and returns the
// incentive to issue, or nil when nothing is due.
func (m *Machine) Process(ctx context.Context, event models.ActionEvent, campaign models.Campaign) (*models.Incentive, error) {
	switch campaign.Type {
	case models.CampaignSimple:
		inc := m.incentive(m.amounts.Simple)
		m.log.Infow("[SIMPLE] incentive generated", "incentive_id", inc.ID, "user_id", event.UserID,
			"action", event.ActionCode, "campaign", campaign.Name)
		return inc, nil
	case models.CampaignQuest:
		return m.quest(ctx, event, campaign)
	default:
		return nil, fmt.Errorf("campaign %s: unsupported campaign type %q", campaign.ID, campaign.Type)
	}
}

func (m *Machine) quest(ctx context.Context, event models.ActionEvent, campaign models.Campaign) (*models.Incentive, error) {
	var issued *models.Incentive

	allowed, err := m.gate.AllowAggregation(ctx, campaign)
	if err != nil {
		return nil, err
	}
	if allowed {
		issued, err = m.trackCompletion(ctx, event, campaign)
		if err != nil {
			// A claimed completion is returned with the error so it is still issued.
			return issued, err
		}
	} else {
		m.log.Debugw("[QUEST] campaign not hot, completion tracking deferred", "campaign_id", campaign.ID, "user_id", event.UserID)
	}

	// The audit trail is written for every qualifying event regardless of the gate.
	agg := models.Aggregation{
		ID:         m.newID(),
		UserID:     event.UserID,
		CampaignID: campaign.ID,
		Action:     event.ActionCode,
		CreatedAt:  m.now(),
	}
	if err := m.aggregations.SaveAggregation(ctx, agg); err != nil {
		return issued, fmt.Errorf("save aggregation for campaign %s: %w", campaign.ID, err)
	}
	m.log.Infow("[QUEST] aggregated action", "action", event.ActionCode, "aggregation_id", agg.ID, "campaign_id", campaign.ID)
	return issued, nil
}

func (m *Machine) trackCompletion(ctx context.Context, event models.ActionEvent, campaign models.Campaign) (*models.Incentive, error) {
	setKey := fmt.Sprintf(constants.QuestSetKey, campaign.ID, event.UserID)
	if err := m.store.MembershipAdd(ctx, setKey, event.ActionCode, QuestTTL); err != nil {
		return nil, err
	}
	done, err := m.store.MembershipList(ctx, setKey)
	if err != nil {
		return nil, err
	}
	if !containsAll(done, campaign.RequiredActions) {
		return nil, nil
	}

	// First increment claims the completion; redeliveries and late duplicates see > 1.
	claims, err := m.store.Increment(ctx, fmt.Sprintf(constants.QuestDoneKey, campaign.ID, event.UserID), QuestTTL)
	if err != nil {
		return nil, err
	}
	if claims != 1 {
		m.log.Debugw("[QUEST] already completed", "campaign_id", campaign.ID, "user_id", event.UserID)
		return nil, nil
	}

	completed := models.Aggregation{
		ID:         m.newID(),
		UserID:     event.UserID,
		CampaignID: campaign.ID,
		Action:     constants.AggregationCompleted,
		CreatedAt:  m.now(),
	}
	inc := m.incentive(m.amounts.Quest)
	if err := m.aggregations.SaveAggregation(ctx, completed); err != nil {
		return inc, fmt.Errorf("save completion for campaign %s: %w", campaign.ID, err)
	}
	m.log.Infow("[QUEST] completed", "user_id", event.UserID, "campaign", campaign.Name, "incentive_id", inc.ID)
	return inc, nil
}

func (m *Machine) incentive(amount float64) *models.Incentive {
	return &models.Incentive{
		ID:       m.newID(),
		Type:     m.amounts.Type,
		Currency: m.amounts.Currency,
		Amount:   amount,
	}
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

package reward

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter/countertest"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/hot"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

type memAggregations struct {
	mu   sync.Mutex
	rows []models.Aggregation
	err  error
	// failures makes the next n saves return err.
	failures int
}

func (m *memAggregations) SaveAggregation(_ context.Context, agg models.Aggregation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	m.rows = append(m.rows, agg)
	return nil
}

func (m *memAggregations) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Action)
	}
	return out
}

type fixedGate struct {
	open bool
	err  error
}

func (g fixedGate) AllowAggregation(context.Context, models.Campaign) (bool, error) {
	return g.open, g.err
}

func questCampaign(required ...string) models.Campaign {
	return models.Campaign{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		Name:            "onboarding",
		Type:            models.CampaignQuest,
		Status:          models.CampaignActive,
		RequiredActions: required,
	}
}

func TestSimpleIssuesConfiguredIncentive(t *testing.T) {
	store, mr := countertest.New(t)
	aggs := &memAggregations{}
	m := NewMachine(store, aggs, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())

	campaign := models.Campaign{ID: uuid.New(), Name: "welcome", Type: models.CampaignSimple}
	inc, err := m.Process(context.Background(), models.ActionEvent{UserID: uuid.New(), ActionCode: "LOGIN"}, campaign)
	require.NoError(t, err)
	require.NotNil(t, inc)
	assert.NotEqual(t, uuid.Nil, inc.ID)
	assert.Equal(t, "CASHBACK", inc.Type)
	assert.Equal(t, "USD", inc.Currency)
	assert.Equal(t, 10.0, inc.Amount)
	assert.Empty(t, aggs.rows)
	assert.Empty(t, mr.Keys())
}

func TestQuestCompletesOnce(t *testing.T) {
	store, _ := countertest.New(t)
	aggs := &memAggregations{}
	m := NewMachine(store, aggs, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A", "B")
	user := uuid.New()
	ctx := context.Background()

	var issued []*models.Incentive
	for _, action := range []string{"A", "B", "B"} {
		inc, err := m.Process(ctx, models.ActionEvent{UserID: user, ActionCode: action}, campaign)
		require.NoError(t, err)
		if inc != nil {
			issued = append(issued, inc)
		}
	}

	require.Len(t, issued, 1)
	assert.Equal(t, 50.0, issued[0].Amount)
	assert.Equal(t, []string{"A", "COMPLETED", "B", "B"}, aggs.actions())
}

func TestQuestSingleActionDoesNotComplete(t *testing.T) {
	store, _ := countertest.New(t)
	aggs := &memAggregations{}
	m := NewMachine(store, aggs, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())

	inc, err := m.Process(context.Background(), models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}, questCampaign("A", "B"))
	require.NoError(t, err)
	assert.Nil(t, inc)
	assert.Equal(t, []string{"A"}, aggs.actions())
}

func TestQuestUsersProgressIndependently(t *testing.T) {
	store, _ := countertest.New(t)
	m := NewMachine(store, &memAggregations{}, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A", "B")
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := m.Process(ctx, models.ActionEvent{UserID: alice, ActionCode: "A"}, campaign)
	require.NoError(t, err)
	inc, err := m.Process(ctx, models.ActionEvent{UserID: bob, ActionCode: "B"}, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)

	inc, err = m.Process(ctx, models.ActionEvent{UserID: alice, ActionCode: "B"}, campaign)
	require.NoError(t, err)
	assert.NotNil(t, inc)
}

func TestQuestClosedGateStillAudits(t *testing.T) {
	store, mr := countertest.New(t)
	aggs := &memAggregations{}
	m := NewMachine(store, aggs, fixedGate{open: false}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A")

	inc, err := m.Process(context.Background(), models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)
	assert.Equal(t, []string{"A"}, aggs.actions())
	assert.Empty(t, mr.Keys())
}

func TestQuestGateError(t *testing.T) {
	store, _ := countertest.New(t)
	aggs := &memAggregations{}
	boom := errors.New("redis down")
	m := NewMachine(store, aggs, fixedGate{err: boom}, DefaultAmounts(), zap.NewNop().Sugar())

	_, err := m.Process(context.Background(), models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}, questCampaign("A"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, aggs.rows)
}

func TestQuestSetExpiry(t *testing.T) {
	store, mr := countertest.New(t)
	m := NewMachine(store, &memAggregations{}, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A", "B")
	user := uuid.New()

	_, err := m.Process(context.Background(), models.ActionEvent{UserID: user, ActionCode: "A"}, campaign)
	require.NoError(t, err)
	assert.Equal(t, QuestTTL, mr.TTL(fmt.Sprintf("quest:%s:%s", campaign.ID, user)))

	mr.FastForward(QuestTTL + time.Hour)
	inc, err := m.Process(context.Background(), models.ActionEvent{UserID: user, ActionCode: "B"}, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)
}

func TestQuestRedeliveryAfterCompletion(t *testing.T) {
	store, _ := countertest.New(t)
	m := NewMachine(store, &memAggregations{}, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A")
	event := models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}

	inc, err := m.Process(context.Background(), event, campaign)
	require.NoError(t, err)
	require.NotNil(t, inc)

	inc, err = m.Process(context.Background(), event, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)
}

func TestQuestCompletionSaveFailureStillIssues(t *testing.T) {
	store, _ := countertest.New(t)
	pgDown := errors.New("pg down")
	aggs := &memAggregations{err: pgDown, failures: 1}
	m := NewMachine(store, aggs, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A")
	event := models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}

	inc, err := m.Process(context.Background(), event, campaign)
	assert.ErrorIs(t, err, pgDown)
	require.NotNil(t, inc)
	assert.Equal(t, 50.0, inc.Amount)

	// Redelivery after recovery writes the audit row and issues nothing new.
	inc, err = m.Process(context.Background(), event, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)
	assert.Equal(t, []string{"A"}, aggs.actions())
}

func TestHotGate(t *testing.T) {
	store, _ := countertest.New(t)
	d := hot.NewDetector(store, 2, zap.NewNop().Sugar())
	aggs := &memAggregations{}
	m := NewMachine(store, aggs, HotGate{Hot: d}, DefaultAmounts(), zap.NewNop().Sugar())
	campaign := questCampaign("A")
	user := uuid.New()
	ctx := context.Background()

	inc, err := m.Process(ctx, models.ActionEvent{UserID: user, ActionCode: "A"}, campaign)
	require.NoError(t, err)
	assert.Nil(t, inc)

	require.NoError(t, d.RegisterEvent(ctx, campaign.TenantID, campaign.ID))
	require.NoError(t, d.RegisterEvent(ctx, campaign.TenantID, campaign.ID))

	inc, err = m.Process(ctx, models.ActionEvent{UserID: user, ActionCode: "A"}, campaign)
	require.NoError(t, err)
	assert.NotNil(t, inc)
	assert.Equal(t, []string{"A", "COMPLETED", "A"}, aggs.actions())
}

func TestUnsupportedCampaignType(t *testing.T) {
	store, _ := countertest.New(t)
	m := NewMachine(store, &memAggregations{}, AlwaysGate{}, DefaultAmounts(), zap.NewNop().Sugar())
	_, err := m.Process(context.Background(), models.ActionEvent{}, models.Campaign{Type: "LOTTERY"})
	assert.Error(t, err)
}

func TestCustomAmounts(t *testing.T) {
	store, _ := countertest.New(t)
	amounts := Amounts{Type: "POINTS", Currency: "PTS", Simple: 1, Quest: 5}
	m := NewMachine(store, &memAggregations{}, AlwaysGate{}, amounts, zap.NewNop().Sugar())

	inc, err := m.Process(context.Background(), models.ActionEvent{UserID: uuid.New(), ActionCode: "A"}, questCampaign("A"))
	require.NoError(t, err)
	require.NotNil(t, inc)
	assert.Equal(t, models.Incentive{ID: inc.ID, Type: "POINTS", Currency: "PTS", Amount: 5}, *inc)
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/evaluation"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/rules"
	"go.uber.org/zap"
)

type settlement struct {
	acked   bool
	requeue bool
}

type ackRecorder struct {
	mu   sync.Mutex
	seen []settlement
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, settlement{acked: true})
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, settlement{requeue: requeue})
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func (a *ackRecorder) settled() []settlement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]settlement(nil), a.seen...)
}

func validBody(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(models.ActionEvent{TenantID: uuid.New(), UserID: uuid.New(), ActionCode: "LOGIN"})
	require.NoError(t, err)
	return b
}

func TestDeliverSettlement(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		result error
		want   settlement
	}{
		{"success acks", validBody(t), nil, settlement{acked: true}},
		{"malformed body dropped", []byte(`{"tenant_id":`), nil, settlement{}},
		{"invalid event dropped", validBody(t), evaluation.ErrInvalidEvent, settlement{}},
		{"unknown rule dropped", validBody(t), rules.ErrUnknownRuleType, settlement{}},
		{"store failure requeued", validBody(t), errors.New("redis: connection refused"), settlement{requeue: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &ackRecorder{}
			c := New("test", func(context.Context, models.ActionEvent) error { return tt.result }, 1, zap.NewNop().Sugar())
			c.Deliver(context.Background(), amqp.Delivery{Acknowledger: ack, Body: tt.body})
			assert.Equal(t, []settlement{tt.want}, ack.settled())
		})
	}
}

func TestRunDrainsUntilClosed(t *testing.T) {
	ack := &ackRecorder{}
	var mu sync.Mutex
	var handled int
	c := New("test", func(context.Context, models.ActionEvent) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, 4, zap.NewNop().Sugar())

	msgs := make(chan amqp.Delivery, 10)
	for i := 0; i < 10; i++ {
		msgs <- amqp.Delivery{Acknowledger: ack, Body: validBody(t)}
	}
	close(msgs)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), msgs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, 10, handled)
	assert.Len(t, ack.settled(), 10)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New("test", func(context.Context, models.ActionEvent) error { return nil }, 2, zap.NewNop().Sugar())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, make(chan amqp.Delivery))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer ignored cancellation")
	}
}

type staticCampaigns struct {
	campaigns []models.Campaign
	err       error
}

func (s staticCampaigns) FindActiveCampaigns(context.Context, uuid.UUID, string) ([]models.Campaign, error) {
	return s.campaigns, s.err
}

type recordingHot struct {
	registered []uuid.UUID
}

func (r *recordingHot) RegisterEvent(_ context.Context, _ uuid.UUID, campaignID uuid.UUID) error {
	r.registered = append(r.registered, campaignID)
	return nil
}

func TestTrackHot(t *testing.T) {
	c1, c2 := uuid.New(), uuid.New()
	hot := &recordingHot{}
	handle := TrackHot(staticCampaigns{campaigns: []models.Campaign{{ID: c1}, {ID: c2}}}, hot)

	err := handle(context.Background(), models.ActionEvent{TenantID: uuid.New(), UserID: uuid.New(), ActionCode: "LOGIN"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c1, c2}, hot.registered)

	err = handle(context.Background(), models.ActionEvent{})
	assert.ErrorIs(t, err, ErrMalformed)

	boom := errors.New("db down")
	err = TrackHot(staticCampaigns{err: boom}, hot)(context.Background(), models.ActionEvent{TenantID: uuid.New(), UserID: uuid.New(), ActionCode: "LOGIN"})
	assert.ErrorIs(t, err, boom)
	assert.True(t, retryable(err))
}

type stubProcessor struct {
	res evaluation.Result
	err error
}

func (s stubProcessor) ProcessEvent(context.Context, models.ActionEvent) (evaluation.Result, error) {
	return s.res, s.err
}

func TestEvaluate(t *testing.T) {
	ok := Evaluate(stubProcessor{res: evaluation.Result{Candidates: 1}}, zap.NewNop().Sugar())
	assert.NoError(t, ok(context.Background(), models.ActionEvent{}))

	boom := errors.New("boom")
	failing := Evaluate(stubProcessor{err: boom}, zap.NewNop().Sugar())
	assert.ErrorIs(t, failing(context.Background(), models.ActionEvent{}), boom)
}

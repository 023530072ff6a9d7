package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// MessagePublisher is satisfied by rabbitmq.Conn.
type MessagePublisher interface {
	PublishMessage(exchangeName, routingKey string, message []byte) error
}

// Publisher puts action events on the exchange that feeds both consumers.
type Publisher struct {
	mq         MessagePublisher
	exchange   string
	routingKey string
	log        *zap.SugaredLogger
}

func NewPublisher(mq MessagePublisher, exchange, routingKey string, log *zap.SugaredLogger) *Publisher {
	return &Publisher{mq: mq, exchange: exchange, routingKey: routingKey, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event models.ActionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.mq.PublishMessage(p.exchange, p.routingKey, body)
}

// Generate publishes count synthetic events for action, each from a fresh
// random user. It returns how many were published before any failure.
func (p *Publisher) Generate(ctx context.Context, tenantID uuid.UUID, action string, count int) (int, error) {
	for i := 0; i < count; i++ {
		event := models.ActionEvent{
			TenantID:   tenantID,
			UserID:     uuid.New(),
			ActionCode: action,
			Timestamp:  time.Now().UTC(),
		}
		if err := p.Publish(ctx, event); err != nil {
			return i, err
		}
	}
	p.log.Infow("generated synthetic events", "tenant_id", tenantID, "action", action, "count", count)
	return count, nil
}

// Package consumer drives the pipeline from the event queues.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/evaluation"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// ErrMalformed marks a message body that can never be decoded.
var ErrMalformed = errors.New("malformed message")

// HandleFunc processes one decoded event.
type HandleFunc func(ctx context.Context, event models.ActionEvent) error

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event models.ActionEvent) (evaluation.Result, error)
}

type CampaignFinder interface {
	FindActiveCampaigns(ctx context.Context, tenantID uuid.UUID, actionCode string) ([]models.Campaign, error)
}

type HotRegistrar interface {
	RegisterEvent(ctx context.Context, tenantID, campaignID uuid.UUID) error
}

// Evaluate runs the full decision pipeline for each event.
func Evaluate(p EventProcessor, log *zap.SugaredLogger) HandleFunc {
	return func(ctx context.Context, event models.ActionEvent) error {
		res, err := p.ProcessEvent(ctx, event)
		if err != nil {
			return err
		}
		log.Debugw("event evaluated", "tenant_id", event.TenantID, "user_id", event.UserID,
			"action", event.ActionCode, "candidates", res.Candidates, "issued", len(res.Issued))
		return nil
	}
}

// TrackHot counts each event against every active campaign it can trigger.
func TrackHot(campaigns CampaignFinder, hot HotRegistrar) HandleFunc {
	return func(ctx context.Context, event models.ActionEvent) error {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		active, err := campaigns.FindActiveCampaigns(ctx, event.TenantID, event.ActionCode)
		if err != nil {
			return err
		}
		for _, c := range active {
			if err := hot.RegisterEvent(ctx, event.TenantID, c.ID); err != nil {
				return err
			}
		}
		return nil
	}
}

// Consumer pulls deliveries from one queue and acknowledges them according
// to the handler outcome.
type Consumer struct {
	name    string
	handle  HandleFunc
	workers int
	log     *zap.SugaredLogger
}

func New(name string, handle HandleFunc, workers int, log *zap.SugaredLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{name: name, handle: handle, workers: workers, log: log}
}

// Run consumes msgs until the channel closes or ctx is done.
func (c *Consumer) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-msgs:
					if !ok {
						return
					}
					c.Deliver(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	c.log.Infof("consumer %s stopped", c.name)
}

// Deliver decodes and handles a single delivery, then settles it.
// Malformed bodies and permanent failures are dropped; everything else is requeued.
func (c *Consumer) Deliver(ctx context.Context, d amqp.Delivery) {
	err := c.process(ctx, d.Body)
	switch {
	case err == nil:
		if aerr := d.Ack(false); aerr != nil {
			c.log.Errorf("consumer %s: ack failed: %v", c.name, aerr)
		}
	case !retryable(err):
		c.log.Errorw("dropping message", "consumer", c.name, "err", err)
		if nerr := d.Nack(false, false); nerr != nil {
			c.log.Errorf("consumer %s: nack failed: %v", c.name, nerr)
		}
	default:
		c.log.Warnw("requeueing message", "consumer", c.name, "err", err)
		if nerr := d.Nack(false, true); nerr != nil {
			c.log.Errorf("consumer %s: nack failed: %v", c.name, nerr)
		}
	}
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
	var event models.ActionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c.handle(ctx, event)
}

func retryable(err error) bool {
	if errors.Is(err, ErrMalformed) {
		return false
	}
	return evaluation.IsRetryable(err)
}

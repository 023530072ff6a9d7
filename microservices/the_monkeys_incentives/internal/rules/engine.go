package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

var (
	ErrUnknownRuleType  = errors.New("no handler registered for rule type")
	ErrDuplicateHandler = errors.New("rule handler already registered")
)

// Handler evaluates one rule kind for an event in the scope of a campaign.
type Handler interface {
	Evaluate(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, params map[string]any) (bool, error)
}

type HandlerFunc func(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, params map[string]any) (bool, error)

func (f HandlerFunc) Evaluate(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, params map[string]any) (bool, error) {
	return f(ctx, event, campaignID, params)
}

// Registration binds a handler to the rule kind it interprets.
type Registration struct {
	Type    models.RuleType
	Handler Handler
}

// Engine dispatches a campaign's ordered rule list to the registered handlers.
// The handler table is fixed at construction.
type Engine struct {
	handlers map[models.RuleType]Handler
	log      *zap.SugaredLogger
}

func NewEngine(log *zap.SugaredLogger, regs ...Registration) (*Engine, error) {
	handlers := make(map[models.RuleType]Handler, len(regs))
	for _, r := range regs {
		if r.Handler == nil {
			return nil, fmt.Errorf("nil handler for rule type %s", r.Type)
		}
		if _, ok := handlers[r.Type]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, r.Type)
		}
		handlers[r.Type] = r.Handler
	}
	return &Engine{handlers: handlers, log: log}, nil
}

// Supports reports whether a handler is registered for t.
func (e *Engine) Supports(t models.RuleType) bool {
	_, ok := e.handlers[t]
	return ok
}

// Validate rejects rule lists that reference unregistered kinds, so bad
// campaigns are refused when they are written rather than when they fire.
func (e *Engine) Validate(rules []models.Rule) error {
	for i, r := range rules {
		if !e.Supports(r.Type) {
			return fmt.Errorf("rule %d: %w: %q", i, ErrUnknownRuleType, r.Type)
		}
	}
	return nil
}

// EvaluateAll applies rules in order with AND semantics and stops at the
// first rule that does not pass. An empty list passes.
func (e *Engine) EvaluateAll(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, rules []models.Rule) (bool, error) {
	for i, r := range rules {
		h, ok := e.handlers[r.Type]
		if !ok {
			return false, fmt.Errorf("campaign %s rule %d: %w: %q", campaignID, i, ErrUnknownRuleType, r.Type)
		}
		pass, err := h.Evaluate(ctx, event, campaignID, r.Params)
		if err != nil {
			return false, fmt.Errorf("campaign %s rule %d (%s): %w", campaignID, i, r.Type, err)
		}
		if !pass {
			e.log.Debugw("rule not satisfied", "campaign_id", campaignID, "rule", r.Type, "index", i)
			return false, nil
		}
	}
	return true, nil
}

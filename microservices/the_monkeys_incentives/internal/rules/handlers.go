package rules

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/the-monkeys/incentives/constants"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

// ActionCountParams configures ACTION_COUNT. A nil Count means no constraint.
type ActionCountParams struct {
	Count  *int64 `mapstructure:"count"`
	Window string `mapstructure:"window"`
}

// CohortParams configures COHORT. A nil CohortID means no constraint. Scalar
// values are compared by their printed form.
type CohortParams struct {
	CohortID any `mapstructure:"cohortId"`
}

// integralFloats lets JSON numbers reach integer fields. Fractional values are
// rejected so the rule fails open instead of truncating.
func integralFloats(_, to reflect.Type, data any) (any, error) {
	f, ok := data.(float64)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int64(f), nil
	}
	return data, nil
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: integralFloats,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

func scalarString(v any) (string, bool) {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprint(v), true
	}
	return "", false
}

// ActionCount passes while the user's per-campaign counter for the window,
// after this event is counted, stays within Count.
type ActionCount struct {
	store counter.Store
	log   *zap.SugaredLogger
}

func NewActionCount(store counter.Store, log *zap.SugaredLogger) *ActionCount {
	return &ActionCount{store: store, log: log}
}

func (h *ActionCount) Evaluate(ctx context.Context, event models.ActionEvent, campaignID uuid.UUID, params map[string]any) (bool, error) {
	var p ActionCountParams
	if err := decodeParams(params, &p); err != nil {
		h.log.Warnw("malformed ACTION_COUNT params, passing", "campaign_id", campaignID, "err", err)
		return true, nil
	}
	if p.Count == nil {
		return true, nil
	}
	window := p.Window
	if window == "" {
		window = models.WindowDaily
	}

	key := fmt.Sprintf(constants.ActionCountRuleKey, campaignID, event.UserID)
	current, err := h.store.Increment(ctx, key, models.WindowTTL(window))
	if err != nil {
		return false, err
	}
	return current <= *p.Count, nil
}

// Cohort passes when the event's "cohort" attribute equals the configured cohort.
type Cohort struct {
	log *zap.SugaredLogger
}

func NewCohort(log *zap.SugaredLogger) *Cohort {
	return &Cohort{log: log}
}

func (h *Cohort) Evaluate(_ context.Context, event models.ActionEvent, campaignID uuid.UUID, params map[string]any) (bool, error) {
	var p CohortParams
	if err := decodeParams(params, &p); err != nil {
		h.log.Warnw("malformed COHORT params, passing", "campaign_id", campaignID, "err", err)
		return true, nil
	}
	if p.CohortID == nil {
		return true, nil
	}
	want, ok := scalarString(p.CohortID)
	if !ok {
		h.log.Warnw("malformed COHORT params, passing", "campaign_id", campaignID, "cohort_id", p.CohortID)
		return true, nil
	}
	actual, ok := event.Attributes["cohort"]
	if !ok || actual == nil {
		return false, nil
	}
	got, ok := scalarString(actual)
	return ok && got == want, nil
}

// DefaultRegistrations is the handler table assembled at process start.
func DefaultRegistrations(store counter.Store, log *zap.SugaredLogger) []Registration {
	return []Registration{
		{Type: models.RuleActionCount, Handler: NewActionCount(store, log)},
		{Type: models.RuleCohort, Handler: NewCohort(log)},
	}
}

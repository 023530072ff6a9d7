package models

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CampaignType string

const (
	CampaignSimple CampaignType = "SIMPLE"
	CampaignQuest  CampaignType = "QUEST"
)

func (t CampaignType) Valid() bool {
	return t == CampaignSimple || t == CampaignQuest
}

type CampaignStatus string

const (
	CampaignDraft  CampaignStatus = "DRAFT"
	CampaignActive CampaignStatus = "ACTIVE"
	CampaignPaused CampaignStatus = "PAUSED"
	CampaignEnded  CampaignStatus = "ENDED"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignEnded:
		return true
	}
	return false
}

type RuleType string

const (
	RuleActionCount RuleType = "ACTION_COUNT"
	RuleCohort      RuleType = "COHORT"
)

// Rule is interpreted only by the handler registered for its Type.
type Rule struct {
	Type   RuleType       `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionEvent is a single user action delivered by the transport.
type ActionEvent struct {
	TenantID   uuid.UUID      `json:"tenant_id"`
	UserID     uuid.UUID      `json:"user_id"`
	ActionCode string         `json:"action_code"`
	Timestamp  time.Time      `json:"event_timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

var (
	ErrMissingTenant = errors.New("tenant_id is required")
	ErrMissingUser   = errors.New("user_id is required")
	ErrMissingAction = errors.New("action_code is required")
)

func (e ActionEvent) Validate() error {
	switch {
	case e.TenantID == uuid.Nil:
		return ErrMissingTenant
	case e.UserID == uuid.Nil:
		return ErrMissingUser
	case strings.TrimSpace(e.ActionCode) == "":
		return ErrMissingAction
	}
	return nil
}

type Campaign struct {
	ID       uuid.UUID      `json:"id"`
	TenantID uuid.UUID      `json:"tenant_id"`
	Name     string         `json:"name"`
	Type     CampaignType   `json:"type"`
	Status   CampaignStatus `json:"status"`
	Rules    []Rule         `json:"rules,omitempty"`
	// ActionCodes lists the actions that trigger a SIMPLE campaign. Empty means any action.
	ActionCodes []string `json:"action_codes,omitempty"`
	// RequiredActions is the completion set of a QUEST campaign.
	RequiredActions []string  `json:"required_actions,omitempty"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Triggers reports whether an event with actionCode is a candidate for c.
func (c Campaign) Triggers(actionCode string) bool {
	if len(c.ActionCodes) == 0 && len(c.RequiredActions) == 0 {
		return true
	}
	return slices.Contains(c.ActionCodes, actionCode) || slices.Contains(c.RequiredActions, actionCode)
}

// ActiveAt reports whether c is ACTIVE and now falls inside its schedule.
func (c Campaign) ActiveAt(now time.Time) bool {
	if c.Status != CampaignActive {
		return false
	}
	if !c.StartAt.IsZero() && now.Before(c.StartAt) {
		return false
	}
	if !c.EndAt.IsZero() && now.After(c.EndAt) {
		return false
	}
	return true
}

type LimitStatus string

const (
	LimitActive LimitStatus = "ACTIVE"
	LimitPaused LimitStatus = "PAUSED"
)

type Limit struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	ActionCode string      `json:"code"`
	Cap        int64       `json:"cap"`
	Window     string      `json:"window"`
	Status     LimitStatus `json:"status"`
}

const (
	WindowDaily   = "DAILY"
	WindowMonthly = "MONTHLY"
)

// WindowTTL maps a window name to its counter lifetime. Unknown names fall
// back to one year.
func WindowTTL(window string) time.Duration {
	switch strings.ToUpper(strings.TrimSpace(window)) {
	case WindowDaily:
		return 24 * time.Hour
	case WindowMonthly:
		return 30 * 24 * time.Hour
	default:
		return 365 * 24 * time.Hour
	}
}

// Incentive is the reward value issued for a qualifying event.
type Incentive struct {
	ID       uuid.UUID `json:"id"`
	Type     string    `json:"type"`
	Currency string    `json:"currency"`
	Amount   float64   `json:"amount"`
}

// Aggregation is one append-only entry of a user's quest history. Action is
// either an action code or a terminal status.
type Aggregation struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Action     string    `json:"action_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncentiveMessage is pushed to websocket subscribers whenever an incentive is issued.
type IncentiveMessage struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Type         string    `json:"type"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	CampaignName string    `json:"campaign_name"`
}

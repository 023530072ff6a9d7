package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWindowTTL(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		window string
		want   time.Duration
	}{
		{"DAILY", day},
		{"daily", day},
		{"MONTHLY", 30 * day},
		{"WEEKLY", 365 * day},
		{"", 365 * day},
	}
	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowTTL(tt.window))
		})
	}
}

func TestCampaignTriggers(t *testing.T) {
	assert.True(t, Campaign{}.Triggers("LOGIN"))

	simple := Campaign{ActionCodes: []string{"PURCHASE"}}
	assert.True(t, simple.Triggers("PURCHASE"))
	assert.False(t, simple.Triggers("LOGIN"))

	quest := Campaign{Type: CampaignQuest, RequiredActions: []string{"A", "B"}}
	assert.True(t, quest.Triggers("B"))
	assert.False(t, quest.Triggers("C"))
}

func TestCampaignActiveAt(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Campaign{Status: CampaignActive, StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour)}
	assert.True(t, c.ActiveAt(now))
	assert.False(t, c.ActiveAt(now.Add(2*time.Hour)))
	assert.False(t, c.ActiveAt(now.Add(-2*time.Hour)))

	c.Status = CampaignPaused
	assert.False(t, c.ActiveAt(now))

	open := Campaign{Status: CampaignActive}
	assert.True(t, open.ActiveAt(now))
}

func TestActionEventValidate(t *testing.T) {
	ev := ActionEvent{TenantID: uuid.New(), UserID: uuid.New(), ActionCode: "LOGIN"}
	assert.NoError(t, ev.Validate())

	noTenant := ev
	noTenant.TenantID = uuid.Nil
	assert.ErrorIs(t, noTenant.Validate(), ErrMissingTenant)

	noUser := ev
	noUser.UserID = uuid.Nil
	assert.ErrorIs(t, noUser.Validate(), ErrMissingUser)

	noAction := ev
	noAction.ActionCode = "  "
	assert.ErrorIs(t, noAction.Validate(), ErrMissingAction)
}

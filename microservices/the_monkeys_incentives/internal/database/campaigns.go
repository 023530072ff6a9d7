package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
)

const campaignColumns = `id, tenant_id, name, type, status, rules, action_codes, required_actions, start_at, end_at, created_at`

func (db *IncentivesDB) CreateCampaign(ctx context.Context, c models.Campaign) error {
	rules, err := encodeRules(c.Rules)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO campaigns (id, tenant_id, name, type, status, rules, action_codes, required_actions, start_at, end_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = db.pool.Exec(ctx, query, c.ID, c.TenantID, c.Name, string(c.Type), string(c.Status), rules,
		nonNil(c.ActionCodes), nonNil(c.RequiredActions), nullTime(c.StartAt), nullTime(c.EndAt), c.CreatedAt)
	if err != nil {
		db.log.Errorf("error creating campaign %s for tenant %s, error: %+v", c.ID, c.TenantID, err)
		return err
	}
	db.log.Infof("created campaign %s (%s) for tenant %s", c.ID, c.Type, c.TenantID)
	return nil
}

func (db *IncentivesDB) GetCampaign(ctx context.Context, id uuid.UUID) (models.Campaign, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Campaign{}, ErrNotFound
	}
	return c, err
}

// UpdateCampaign overwrites the mutable fields of an existing campaign.
func (db *IncentivesDB) UpdateCampaign(ctx context.Context, c models.Campaign) error {
	rules, err := encodeRules(c.Rules)
	if err != nil {
		return err
	}
	query := `
		UPDATE campaigns
		SET name = $2, status = $3, rules = $4, action_codes = $5, required_actions = $6, start_at = $7, end_at = $8
		WHERE id = $1`
	tag, err := db.pool.Exec(ctx, query, c.ID, c.Name, string(c.Status), rules,
		nonNil(c.ActionCodes), nonNil(c.RequiredActions), nullTime(c.StartAt), nullTime(c.EndAt))
	if err != nil {
		db.log.Errorf("error updating campaign %s, error: %+v", c.ID, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *IncentivesDB) SetCampaignStatus(ctx context.Context, id uuid.UUID, status models.CampaignStatus) error {
	tag, err := db.pool.Exec(ctx, `UPDATE campaigns SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		db.log.Errorf("error setting campaign %s status to %s, error: %+v", id, status, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	db.log.Infof("campaign %s is now %s", id, status)
	return nil
}

func (db *IncentivesDB) ListCampaigns(ctx context.Context, tenantID uuid.UUID) ([]models.Campaign, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	return collectCampaigns(rows)
}

// FindActiveCampaigns returns the ACTIVE, in-schedule campaigns of a tenant
// that the given action can trigger.
func (db *IncentivesDB) FindActiveCampaigns(ctx context.Context, tenantID uuid.UUID, actionCode string) ([]models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE tenant_id = $1
		  AND status = 'ACTIVE'
		  AND (start_at IS NULL OR start_at <= $3)
		  AND (end_at IS NULL OR end_at >= $3)
		  AND ($2 = ANY(action_codes) OR $2 = ANY(required_actions)
		       OR (cardinality(action_codes) = 0 AND cardinality(required_actions) = 0))
		ORDER BY created_at`
	rows, err := db.pool.Query(ctx, query, tenantID, actionCode, time.Now())
	if err != nil {
		db.log.Errorf("error finding active campaigns for tenant %s action %s, error: %+v", tenantID, actionCode, err)
		return nil, err
	}
	return collectCampaigns(rows)
}

func collectCampaigns(rows pgx.Rows) ([]models.Campaign, error) {
	defer rows.Close()
	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCampaign(row pgx.Row) (models.Campaign, error) {
	var (
		c              models.Campaign
		typ, status    string
		rules          []byte
		startAt, endAt *time.Time
	)
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &typ, &status, &rules,
		&c.ActionCodes, &c.RequiredActions, &startAt, &endAt, &c.CreatedAt); err != nil {
		return models.Campaign{}, err
	}
	c.Type = models.CampaignType(typ)
	c.Status = models.CampaignStatus(status)
	if startAt != nil {
		c.StartAt = *startAt
	}
	if endAt != nil {
		c.EndAt = *endAt
	}
	var err error
	c.Rules, err = decodeRules(rules)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("campaign %s: %w", c.ID, err)
	}
	return c, nil
}

func encodeRules(rules []models.Rule) ([]byte, error) {
	if rules == nil {
		rules = []models.Rule{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return b, nil
}

func decodeRules(b []byte) ([]models.Rule, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rules []models.Rule
	if err := json.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
)

func (db *IncentivesDB) SaveIncentive(ctx context.Context, inc models.Incentive) error {
	query := `INSERT INTO incentives (id, type, currency, amount) VALUES ($1, $2, $3, $4)`
	if _, err := db.pool.Exec(ctx, query, inc.ID, inc.Type, inc.Currency, inc.Amount); err != nil {
		db.log.Errorf("error saving incentive %s, error: %+v", inc.ID, err)
		return err
	}
	return nil
}

func (db *IncentivesDB) SaveAggregation(ctx context.Context, agg models.Aggregation) error {
	query := `INSERT INTO user_aggregation (id, user_id, campaign_id, action_code, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := db.pool.Exec(ctx, query, agg.ID, agg.UserID, agg.CampaignID, agg.Action, agg.CreatedAt); err != nil {
		db.log.Errorf("error saving aggregation for user %s campaign %s, error: %+v", agg.UserID, agg.CampaignID, err)
		return err
	}
	return nil
}

// ActionsForUserCampaign returns the user's quest history for a campaign in
// the order it was recorded.
func (db *IncentivesDB) ActionsForUserCampaign(ctx context.Context, userID, campaignID uuid.UUID) ([]models.Aggregation, error) {
	query := `
		SELECT id, user_id, campaign_id, action_code, created_at
		FROM user_aggregation
		WHERE user_id = $1 AND campaign_id = $2
		ORDER BY created_at`
	rows, err := db.pool.Query(ctx, query, userID, campaignID)
	if err != nil {
		db.log.Errorf("error fetching actions for user %s campaign %s, error: %+v", userID, campaignID, err)
		return nil, err
	}
	defer rows.Close()

	var out []models.Aggregation
	for rows.Next() {
		var a models.Aggregation
		if err := rows.Scan(&a.ID, &a.UserID, &a.CampaignID, &a.Action, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

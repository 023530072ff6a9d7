package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
)

func (db *IncentivesDB) CreateLimit(ctx context.Context, l models.Limit) error {
	query := `INSERT INTO limits (id, tenant_id, code, cap, time_window, status) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := db.pool.Exec(ctx, query, l.ID, l.TenantID, l.ActionCode, l.Cap, l.Window, string(l.Status)); err != nil {
		db.log.Errorf("error creating limit for tenant %s action %s, error: %+v", l.TenantID, l.ActionCode, err)
		return err
	}
	db.log.Infof("created limit %s: %s capped at %d per %s", l.ID, l.ActionCode, l.Cap, l.Window)
	return nil
}

func (db *IncentivesDB) GetLimit(ctx context.Context, id uuid.UUID) (models.Limit, error) {
	var (
		l      models.Limit
		status string
	)
	err := db.pool.QueryRow(ctx, `SELECT id, tenant_id, code, cap, time_window, status FROM limits WHERE id = $1`, id).
		Scan(&l.ID, &l.TenantID, &l.ActionCode, &l.Cap, &l.Window, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Limit{}, ErrNotFound
	}
	l.Status = models.LimitStatus(status)
	return l, err
}

// UpdateLimit changes the cap and status of a limit. Live counters keep their
// current values and windows.
func (db *IncentivesDB) UpdateLimit(ctx context.Context, id uuid.UUID, capacity int64, status models.LimitStatus) error {
	tag, err := db.pool.Exec(ctx, `UPDATE limits SET cap = $2, status = $3 WHERE id = $1`, id, capacity, string(status))
	if err != nil {
		db.log.Errorf("error updating limit %s, error: %+v", id, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *IncentivesDB) ListLimits(ctx context.Context, tenantID uuid.UUID) ([]models.Limit, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, tenant_id, code, cap, time_window, status FROM limits WHERE tenant_id = $1`, tenantID)
	if err != nil {
		db.log.Errorf("error listing limits for tenant %s, error: %+v", tenantID, err)
		return nil, err
	}
	defer rows.Close()

	var out []models.Limit
	for rows.Next() {
		var (
			l      models.Limit
			status string
		)
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ActionCode, &l.Cap, &l.Window, &status); err != nil {
			return nil, err
		}
		l.Status = models.LimitStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

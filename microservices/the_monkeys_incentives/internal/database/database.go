// Package database persists campaigns, limits, issued incentives and quest
// history in PostgreSQL.
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/the-monkeys/incentives/config"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("record not found")

//go:embed schema.sql
var schema string

type IncentivesDB struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// DSN builds the connection string for the primary database.
func DSN(cfg config.Database) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DBUsername,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}

func NewIncentivesDB(ctx context.Context, cfg config.Database, log *zap.SugaredLogger) (*IncentivesDB, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	db := &IncentivesDB{pool: pool, log: log}
	if err := db.Ready(ctx); err != nil {
		pool.Close()
		log.Errorf("ping test failed to psql, error: %+v", err)
		return nil, err
	}
	log.Info("the monkeys incentives service is connected to psql")
	return db, nil
}

func (db *IncentivesDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *IncentivesDB) Ready(ctx context.Context) error {
	var one int
	return db.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *IncentivesDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

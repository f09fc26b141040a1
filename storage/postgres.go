package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"hk_bids/models"
)

// PostgresStore mirrors submitted bids into a reporting database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bid_submissions (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			company TEXT NOT NULL,
			bid_id TEXT,
			total NUMERIC(12,2) NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bids (
			submission_id UUID NOT NULL REFERENCES bid_submissions(id),
			unit_code TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			PRIMARY KEY (submission_id, unit_code)
		);

		CREATE INDEX IF NOT EXISTS idx_bids_unit ON bids(unit_code);`)
	return err
}

// RecordSubmission writes the batch and its bids in one transaction.
func (s *PostgresStore) RecordSubmission(ctx context.Context, sub *models.Submission) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bid_submissions (id, session_id, company, bid_id, total, submitted_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		sub.ID, sub.SessionID, sub.Company, sub.BidID, sub.Total, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range sub.Bids {
		batch.Queue(`
			INSERT INTO bids (submission_id, unit_code, amount)
			VALUES ($1, $2, $3)
			ON CONFLICT (submission_id, unit_code) DO NOTHING`,
			sub.ID, b.UnitCode, b.Amount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert bids: %w", err)
	}

	return tx.Commit(ctx)
}

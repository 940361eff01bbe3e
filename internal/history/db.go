// Package history is the Postgres audit trail: bid attempts, settlement
// reports, and the transactional outbox a signing relayer drains. None of it
// is contract state; losing a receipt never corrupts the pool.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// Store wraps the history database connection pool.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection pool.
func Open(cfg DBConfig) (*Store, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL history database!")
	return &Store{db: db}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() {
	if s.db != nil {
		log.Info().Msg("Closing history database connection...")
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing history database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func (s *Store) EnsureSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS bid_receipts (
			receipt_id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			auction_round BIGINT NOT NULL,
			caller TEXT NOT NULL,
			action VARCHAR(50) NOT NULL,
			reason TEXT,
			bid_amount NUMERIC(40, 0),
			basket_value NUMERIC(40, 0)
		);
		CREATE INDEX IF NOT EXISTS idx_bid_receipts_round ON bid_receipts(auction_round);
		CREATE INDEX IF NOT EXISTS idx_bid_receipts_created ON bid_receipts(created_at DESC);

		CREATE TABLE IF NOT EXISTS settlement_receipts (
			receipt_id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			auction_round BIGINT NOT NULL,
			caller TEXT NOT NULL,
			auction_winner TEXT NOT NULL,
			auction_winning_bid NUMERIC(40, 0) NOT NULL,
			pool_won BOOLEAN NOT NULL,
			treasure_chest_address TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_settlement_receipts_round ON settlement_receipts(auction_round);

		CREATE TABLE IF NOT EXISTS outbox_messages (
			message_id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			batch_id UUID NOT NULL,
			batch_index INTEGER NOT NULL,
			msg_type VARCHAR(100) NOT NULL,
			payload JSONB NOT NULL,
			delivered_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_outbox_batch ON outbox_messages(batch_id);
		CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_messages(message_id) WHERE delivered_at IS NULL;
	`
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("History database schema ensured.")
	return nil
}

// ResetSchema drops every history table and recreates the schema. Used by
// the maintenance script only.
func (s *Store) ResetSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	dropSQL := `
		DROP TABLE IF EXISTS bid_receipts CASCADE;
		DROP TABLE IF EXISTS settlement_receipts CASCADE;
		DROP TABLE IF EXISTS outbox_messages CASCADE;
	`
	if _, err := s.db.Exec(dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return s.EnsureSchema()
}

// Ping tests if the database connection is healthy.
func (s *Store) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

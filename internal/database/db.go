package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/config"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB creates a new database connection
func NewDB(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		// Durable audit trail of every workflow decision
		`CREATE TABLE IF NOT EXISTS decisions (
			id SERIAL PRIMARY KEY,
			trade_id VARCHAR(40) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(8) NOT NULL,
			asset_type VARCHAR(10) NOT NULL,
			strategy VARCHAR(50),
			quantity INTEGER NOT NULL,
			limit_price DECIMAL(20, 8),
			notional DECIMAL(20, 8) NOT NULL,
			collateral DECIMAL(20, 8) NOT NULL DEFAULT 0,
			status VARCHAR(12) NOT NULL,
			mode VARCHAR(12) NOT NULL,
			operator VARCHAR(50),
			reasons TEXT,
			proposed_at TIMESTAMP NOT NULL,
			decided_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_trade_id ON decisions(trade_id)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at)`,

		// Fills applied to the paper account
		`CREATE TABLE IF NOT EXISTS executions (
			id SERIAL PRIMARY KEY,
			trade_id VARCHAR(40) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(8) NOT NULL,
			quantity INTEGER NOT NULL,
			notional DECIMAL(20, 8) NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_trade_id ON executions(trade_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_symbol ON executions(symbol)`,

		// First-seen news stories with duplicate counts
		`CREATE TABLE IF NOT EXISTS news_stories (
			id VARCHAR(40) PRIMARY KEY,
			symbol VARCHAR(20),
			headline TEXT NOT NULL,
			provider VARCHAR(50),
			duplicates INTEGER NOT NULL DEFAULT 0,
			first_seen TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_stories_symbol ON news_stories(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_news_stories_first_seen ON news_stories(first_seen)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}

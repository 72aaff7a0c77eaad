package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

// DecisionRecord is a row of the decisions audit trail
type DecisionRecord struct {
	ID         int       `json:"id"`
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	AssetType  string    `json:"asset_type"`
	Strategy   string    `json:"strategy,omitempty"`
	Quantity   int       `json:"quantity"`
	LimitPrice float64   `json:"limit_price"`
	Notional   float64   `json:"notional"`
	Collateral float64   `json:"collateral"`
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Operator   string    `json:"operator,omitempty"`
	Reasons    []string  `json:"reasons,omitempty"`
	ProposedAt time.Time `json:"proposed_at"`
	DecidedAt  time.Time `json:"decided_at,omitempty"`
}

// Repository provides access to the audit tables
type Repository struct {
	db *DB
}

// NewRepository creates a repository backed by the given database
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordDecision appends a workflow decision to the audit trail
func (r *Repository) RecordDecision(ctx context.Context, trade *supervisor.PendingTrade) error {
	query := `
		INSERT INTO decisions (
			trade_id, symbol, side, asset_type, strategy, quantity,
			limit_price, notional, collateral, status, mode, operator,
			reasons, proposed_at, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	var decidedAt interface{}
	if !trade.DecidedAt.IsZero() {
		decidedAt = trade.DecidedAt
	}

	_, err := r.db.Pool.Exec(ctx, query,
		trade.ID,
		trade.Intent.Symbol,
		trade.Intent.Side,
		string(trade.Intent.AssetType),
		trade.Intent.Strategy,
		trade.Quantity,
		trade.Intent.LimitPrice,
		trade.Notional,
		trade.Collateral,
		string(trade.Status),
		string(trade.Mode),
		trade.Operator,
		strings.Join(trade.Reasons, "; "),
		trade.CreatedAt,
		decidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// ListDecisions returns the most recent decisions, newest first
func (r *Repository) ListDecisions(ctx context.Context, limit int) ([]DecisionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, trade_id, symbol, side, asset_type, COALESCE(strategy, ''),
		       quantity, COALESCE(limit_price, 0), notional, collateral,
		       status, mode, COALESCE(operator, ''), COALESCE(reasons, ''),
		       proposed_at, COALESCE(decided_at, proposed_at)
		FROM decisions
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var reasons string
		if err := rows.Scan(
			&rec.ID, &rec.TradeID, &rec.Symbol, &rec.Side, &rec.AssetType,
			&rec.Strategy, &rec.Quantity, &rec.LimitPrice, &rec.Notional,
			&rec.Collateral, &rec.Status, &rec.Mode, &rec.Operator,
			&reasons, &rec.ProposedAt, &rec.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		if reasons != "" {
			rec.Reasons = strings.Split(reasons, "; ")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DecisionStats aggregates the audit trail by outcome
func (r *Repository) DecisionStats(ctx context.Context) (map[string]interface{}, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(notional), 0)
		FROM decisions
		GROUP BY status`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision stats: %w", err)
	}
	defer rows.Close()

	byStatus := make(map[string]int64)
	notional := make(map[string]float64)
	var total int64
	for rows.Next() {
		var status string
		var count int64
		var sum float64
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan decision stats: %w", err)
		}
		byStatus[status] = count
		notional[status] = sum
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total":     total,
		"by_status": byStatus,
		"notional":  notional,
		"generated": time.Now(),
	}, nil
}

// ExecutionRecord is a row of the executions table
type ExecutionRecord struct {
	ID         int       `json:"id"`
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int       `json:"quantity"`
	Notional   float64   `json:"notional"`
	ExecutedAt time.Time `json:"executed_at"`
}

// RecordExecution appends a fill to the executions table
func (r *Repository) RecordExecution(ctx context.Context, tradeID, symbol, side string, quantity int, notional float64, executedAt time.Time) error {
	query := `
		INSERT INTO executions (trade_id, symbol, side, quantity, notional, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Pool.Exec(ctx, query, tradeID, symbol, side, quantity, notional, executedAt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent fills, newest first
func (r *Repository) ListExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, trade_id, symbol, side, quantity, notional, executed_at
		FROM executions
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		if err := rows.Scan(
			&rec.ID, &rec.TradeID, &rec.Symbol, &rec.Side,
			&rec.Quantity, &rec.Notional, &rec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveNewsStory records a first-seen story
func (r *Repository) SaveNewsStory(ctx context.Context, id, symbol, headline, provider string, duplicates int, firstSeen time.Time) error {
	query := `
		INSERT INTO news_stories (id, symbol, headline, provider, duplicates, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET duplicates = EXCLUDED.duplicates`

	_, err := r.db.Pool.Exec(ctx, query, id, symbol, headline, provider, duplicates, firstSeen)
	if err != nil {
		return fmt.Errorf("failed to save news story: %w", err)
	}
	return nil
}

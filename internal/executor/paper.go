// Package executor applies approved trades to a paper portfolio. It is the
// stand-in behind the supervisor's Executor interface; a live brokerage
// adapter would implement the same surface.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

// Position is an open paper position carried at cost
type Position struct {
	Symbol    string         `json:"symbol"`
	AssetType risk.AssetType `json:"asset_type"`
	Quantity  int            `json:"quantity"`
	AvgCost   float64        `json:"avg_cost"` // Per unit, multiplier included
	Notional  float64        `json:"notional"`
	OpenedAt  time.Time      `json:"opened_at"`
}

// Paper executes trades against an in-memory cash balance. Positions are
// carried at cost; there is no mark-to-market without a data feed.
type Paper struct {
	cash      float64
	positions map[string]*Position
	risk      *risk.Manager
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// NewPaper creates a paper executor with a starting cash balance
func NewPaper(startingCash float64, riskMgr *risk.Manager, logger zerolog.Logger) *Paper {
	return &Paper{
		cash:      startingCash,
		positions: make(map[string]*Position),
		risk:      riskMgr,
		logger:    logger,
	}
}

// Account returns the buying-power snapshot used for sizing
func (p *Paper) Account() risk.Account {
	p.mu.RLock()
	defer p.mu.RUnlock()

	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.Notional
	}
	return risk.Account{Equity: equity, Cash: p.cash}
}

// Execute fills an approved trade at its limit price. A sell against an
// existing long closes it and realizes P&L; anything else opens a position
// and ties up its notional (premium or collateral) in cash.
func (p *Paper) Execute(ctx context.Context, trade *supervisor.PendingTrade) error {
	if trade.Quantity < 1 {
		return fmt.Errorf("cannot execute zero-quantity trade %s", trade.ID)
	}

	intent := trade.Intent

	p.mu.Lock()
	existing, held := p.positions[intent.Symbol]

	if intent.Side == "sell" && held && len(intent.Legs) == 0 {
		p.closeLocked(trade, existing)
		p.mu.Unlock()
		return nil
	}

	if trade.Notional > p.cash {
		p.mu.Unlock()
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", trade.Notional, p.cash)
	}

	p.openLocked(trade)
	p.mu.Unlock()
	return nil
}

// openLocked opens or adds to a position. Caller holds the write lock.
func (p *Paper) openLocked(trade *supervisor.PendingTrade) {
	intent := trade.Intent

	p.cash -= trade.Notional

	pos, ok := p.positions[intent.Symbol]
	if !ok {
		pos = &Position{
			Symbol:    intent.Symbol,
			AssetType: intent.AssetType,
			OpenedAt:  time.Now(),
		}
		p.positions[intent.Symbol] = pos
	}

	total := pos.Notional + trade.Notional
	pos.Quantity += trade.Quantity
	pos.AvgCost = total / float64(pos.Quantity)
	pos.Notional = total

	p.risk.RegisterOpen(intent.Symbol, trade.Notional)
	p.logger.Info().Str("trade_id", trade.ID).Str("symbol", intent.Symbol).
		Int("quantity", trade.Quantity).Float64("notional", trade.Notional).Msg("paper fill: opened")
}

// closeLocked closes up to the held quantity and realizes P&L against the
// average cost. Caller holds the write lock.
func (p *Paper) closeLocked(trade *supervisor.PendingTrade, pos *Position) {
	intent := trade.Intent

	multiplier := 1.0
	if intent.AssetType == risk.AssetOption {
		multiplier = risk.OptionMultiplier
	}

	qty := trade.Quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	proceeds := float64(qty) * intent.LimitPrice * multiplier
	costBasis := float64(qty) * pos.AvgCost
	pnl := proceeds - costBasis

	p.cash += proceeds
	pos.Quantity -= qty
	pos.Notional -= costBasis
	if pos.Quantity <= 0 {
		delete(p.positions, intent.Symbol)
	}

	p.risk.RegisterClose(intent.Symbol, costBasis, pnl)
	p.logger.Info().Str("trade_id", trade.ID).Str("symbol", intent.Symbol).
		Int("quantity", qty).Float64("pnl", pnl).Msg("paper fill: closed")
}

// Positions returns a snapshot of open positions
func (p *Paper) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// Snapshot returns portfolio state for the status API
func (p *Paper) Snapshot() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]Position, 0, len(p.positions))
	deployed := 0.0
	for _, pos := range p.positions {
		positions = append(positions, *pos)
		deployed += pos.Notional
	}

	return map[string]interface{}{
		"cash":      p.cash,
		"deployed":  deployed,
		"equity":    p.cash + deployed,
		"positions": positions,
	}
}

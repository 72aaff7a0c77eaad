package risk

import (
	"fmt"
	"sync"
	"time"
)

// Config holds risk management configuration
type Config struct {
	CashReservePercent   float64 // Equity % kept out of play
	MaxTradeValue        float64 // Per-trade notional cap in USD
	MaxCollateral        float64 // Cap on collateral held against short legs
	MaxOpenPositions     int     // Maximum concurrent positions
	MaxSymbolExposure    float64 // Max notional per symbol in USD
	MaxDailyLoss         float64 // Max realized daily loss in USD before halt
	MaxConsecutiveLosses int     // Breaker trip threshold
	BreakerCooldownMins  int
}

// Manager handles gate evaluation and tracks open exposure and daily P&L
type Manager struct {
	config        *Config
	sizer         *Sizer
	breaker       *Breaker
	exposure      map[string]float64 // symbol -> open notional
	openPositions int
	dailyPnL      float64
	dailyReset    time.Time
	mu            sync.RWMutex
}

// NewManager creates a new risk manager
func NewManager(config *Config) *Manager {
	return &Manager{
		config:     config,
		sizer:      NewSizer(config),
		breaker:    NewBreaker(config),
		exposure:   make(map[string]float64),
		dailyReset: time.Now().Truncate(24 * time.Hour),
	}
}

// Sizer returns the position sizer sharing this manager's config
func (m *Manager) Sizer() *Sizer {
	return m.sizer
}

// Breaker returns the trading circuit breaker
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// Evaluate runs every gate against a sized trade. It returns false with the
// full list of failed gates, not just the first one, so the operator sees
// everything that would have to change.
func (m *Manager) Evaluate(intent TradeIntent, size SizeResult) (bool, []string) {
	var reasons []string

	if ok, reason := m.breaker.CanTrade(); !ok {
		reasons = append(reasons, reason)
	}

	if size.Quantity < 1 {
		reasons = append(reasons, size.Reasons...)
		return false, reasons
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDailyReset()

	if m.openPositions >= m.config.MaxOpenPositions {
		reasons = append(reasons, fmt.Sprintf("max positions reached (%d/%d)", m.openPositions, m.config.MaxOpenPositions))
	}

	if existing := m.exposure[intent.Symbol]; existing+size.Notional > m.config.MaxSymbolExposure {
		reasons = append(reasons, fmt.Sprintf("symbol exposure %.2f + %.2f exceeds cap %.2f",
			existing, size.Notional, m.config.MaxSymbolExposure))
	}

	if m.dailyLossLocked() >= m.config.MaxDailyLoss {
		reasons = append(reasons, fmt.Sprintf("daily loss limit reached (%.2f)", m.dailyLossLocked()))
	}

	return len(reasons) == 0, reasons
}

// RegisterOpen records an opened position's exposure
func (m *Manager) RegisterOpen(symbol string, notional float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.openPositions++
	m.exposure[symbol] += notional
}

// RegisterClose records a closed position and its realized P&L
func (m *Manager) RegisterClose(symbol string, notional, pnl float64) {
	m.mu.Lock()

	m.openPositions--
	if m.openPositions < 0 {
		m.openPositions = 0
	}
	m.exposure[symbol] -= notional
	if m.exposure[symbol] <= 0 {
		delete(m.exposure, symbol)
	}

	m.checkDailyReset()
	m.dailyPnL += pnl
	m.mu.Unlock()

	m.breaker.RecordTrade(pnl)
}

// DailyPnL returns realized P&L since the last daily reset
func (m *Manager) DailyPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyPnL
}

// OpenPositionCount returns the number of open positions
func (m *Manager) OpenPositionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openPositions
}

// dailyLossLocked returns today's realized loss as a positive number.
// Caller must hold at least a read lock.
func (m *Manager) dailyLossLocked() float64 {
	if m.dailyPnL >= 0 {
		return 0
	}
	return -m.dailyPnL
}

// checkDailyReset resets daily P&L on the first gate check or close of
// a new day.
// Caller must hold the write lock.
func (m *Manager) checkDailyReset() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(m.dailyReset) {
		m.dailyPnL = 0
		m.dailyReset = today
	}
}

// Metrics returns current risk metrics for the status API
func (m *Manager) Metrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exposure := make(map[string]float64, len(m.exposure))
	for sym, notional := range m.exposure {
		exposure[sym] = notional
	}

	return map[string]interface{}{
		"open_positions":       m.openPositions,
		"max_open_positions":   m.config.MaxOpenPositions,
		"daily_pnl":            m.dailyPnL,
		"max_daily_loss":       m.config.MaxDailyLoss,
		"symbol_exposure":      exposure,
		"cash_reserve_percent": m.config.CashReservePercent,
		"max_trade_value":      m.config.MaxTradeValue,
		"max_collateral":       m.config.MaxCollateral,
		"breaker":              m.breaker.Stats(),
	}
}

package risk

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Trading halted
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// Breaker halts trading after consecutive losses or when the daily realized
// loss crosses the configured ceiling. After the cooldown it moves to
// half-open; a winning trade closes it, another loss re-trips it.
type Breaker struct {
	config            *Config
	state             BreakerState
	consecutiveLosses int
	dailyLoss         float64
	lastTripTime      time.Time
	dailyResetTime    time.Time
	tripReason        string
	onTrip            func(reason string)
	onReset           func()
	mu                sync.RWMutex
}

// NewBreaker creates a new circuit breaker
func NewBreaker(config *Config) *Breaker {
	now := time.Now()
	return &Breaker{
		config:         config,
		state:          StateClosed,
		dailyResetTime: now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// OnTrip sets the callback fired when the breaker trips
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// OnReset sets the callback fired when the breaker closes again
func (b *Breaker) OnReset(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = handler
}

// CanTrade checks if trading is allowed
func (b *Breaker) CanTrade() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		cooldown := time.Duration(b.config.BreakerCooldownMins) * time.Minute

		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), b.tripReason)
		}

		b.state = StateHalfOpen
	}

	if b.dailyLoss >= b.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f >= %.2f",
			b.dailyLoss, b.config.MaxDailyLoss)
	}

	if b.consecutiveLosses >= b.config.MaxConsecutiveLosses {
		return false, fmt.Sprintf("max consecutive losses reached: %d", b.consecutiveLosses)
	}

	return true, ""
}

// RecordTrade records a realized trade result in USD
func (b *Breaker) RecordTrade(pnl float64) {
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return
	}

	b.mu.Lock()
	b.resetCountersIfNeeded()

	var recovered bool
	if pnl < 0 {
		b.consecutiveLosses++
		b.dailyLoss += -pnl
	} else {
		b.consecutiveLosses = 0
		if b.state == StateHalfOpen {
			b.state = StateClosed
			recovered = true
		}
	}

	b.checkAndTrip()
	onReset := b.onReset
	b.mu.Unlock()

	if recovered && onReset != nil {
		go onReset()
	}
}

// checkAndTrip trips the breaker if a threshold is crossed.
// Caller must hold the write lock.
func (b *Breaker) checkAndTrip() {
	if b.state == StateOpen {
		return
	}

	var reason string
	if b.consecutiveLosses >= b.config.MaxConsecutiveLosses {
		reason = fmt.Sprintf("consecutive losses: %d", b.consecutiveLosses)
	} else if b.dailyLoss >= b.config.MaxDailyLoss {
		reason = fmt.Sprintf("daily loss: %.2f", b.dailyLoss)
	}

	if reason != "" {
		b.state = StateOpen
		b.lastTripTime = time.Now()
		b.tripReason = reason

		if b.onTrip != nil {
			go b.onTrip(reason)
		}
	}
}

// resetCountersIfNeeded resets the daily counter at the day boundary.
// Caller must hold the write lock.
func (b *Breaker) resetCountersIfNeeded() {
	now := time.Now()
	if now.After(b.dailyResetTime) {
		b.dailyLoss = 0
		b.dailyResetTime = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

// ForceReset manually closes the circuit breaker
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.consecutiveLosses = 0
	b.tripReason = ""
	onReset := b.onReset
	b.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Stats returns current breaker statistics
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"state":              string(b.state),
		"consecutive_losses": b.consecutiveLosses,
		"daily_loss":         b.dailyLoss,
		"trip_reason":        b.tripReason,
		"last_trip_time":     b.lastTripTime,
	}
}

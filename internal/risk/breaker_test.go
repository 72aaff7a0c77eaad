package risk

import (
	"strings"
	"testing"
	"time"
)

func breakerConfig() *Config {
	cfg := sizerConfig()
	cfg.MaxConsecutiveLosses = 3
	cfg.MaxDailyLoss = 1000
	cfg.BreakerCooldownMins = 30
	return cfg
}

// TestBreakerConsecutiveLosses verifies the loss-streak trip
func TestBreakerConsecutiveLosses(t *testing.T) {
	b := NewBreaker(breakerConfig())

	b.RecordTrade(-50)
	b.RecordTrade(-50)
	if ok, _ := b.CanTrade(); !ok {
		t.Fatal("breaker should still allow trading at 2 losses")
	}

	b.RecordTrade(-50)
	if b.State() != StateOpen {
		t.Errorf("State = %s, want open after 3 consecutive losses", b.State())
	}
	ok, reason := b.CanTrade()
	if ok {
		t.Fatal("breaker open, CanTrade should fail")
	}
	if !strings.Contains(reason, "cooldown") {
		t.Errorf("reason = %q, want cooldown message", reason)
	}
}

// TestBreakerWinResetsStreak verifies a winner clears the streak
func TestBreakerWinResetsStreak(t *testing.T) {
	b := NewBreaker(breakerConfig())

	b.RecordTrade(-50)
	b.RecordTrade(-50)
	b.RecordTrade(200)
	b.RecordTrade(-50)
	b.RecordTrade(-50)

	if ok, reason := b.CanTrade(); !ok {
		t.Errorf("breaker should be closed, got: %s", reason)
	}
}

// TestBreakerDailyLossTrip verifies the daily loss ceiling trips the breaker
func TestBreakerDailyLossTrip(t *testing.T) {
	cfg := breakerConfig()
	cfg.MaxConsecutiveLosses = 100
	b := NewBreaker(cfg)

	b.RecordTrade(-600)
	b.RecordTrade(-600)

	if b.State() != StateOpen {
		t.Errorf("State = %s, want open after 1200 daily loss", b.State())
	}
}

// TestBreakerForceReset verifies a manual reset closes the breaker
func TestBreakerForceReset(t *testing.T) {
	b := NewBreaker(breakerConfig())

	b.RecordTrade(-50)
	b.RecordTrade(-50)
	b.RecordTrade(-50)
	if b.State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	b.ForceReset()
	if b.State() != StateClosed {
		t.Errorf("State = %s, want closed after ForceReset", b.State())
	}
	if ok, reason := b.CanTrade(); !ok {
		t.Errorf("CanTrade after reset failed: %s", reason)
	}
}

// TestBreakerIgnoresInvalidPnL verifies NaN/Inf results are dropped
func TestBreakerIgnoresInvalidPnL(t *testing.T) {
	b := NewBreaker(breakerConfig())

	nan := 0.0
	b.RecordTrade(nan / nan)
	if stats := b.Stats(); stats["consecutive_losses"].(int) != 0 {
		t.Error("NaN result should not count as a loss")
	}
}

// TestBreakerTripCallback verifies the trip handler fires with the reason
func TestBreakerTripCallback(t *testing.T) {
	b := NewBreaker(breakerConfig())

	tripped := make(chan string, 1)
	b.OnTrip(func(reason string) { tripped <- reason })

	b.RecordTrade(-50)
	b.RecordTrade(-50)
	b.RecordTrade(-50)

	select {
	case reason := <-tripped:
		if !strings.Contains(reason, "consecutive losses") {
			t.Errorf("trip reason = %q, want consecutive losses", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("trip callback never fired")
	}
}

package risk

import (
	"strings"
	"testing"
	"time"
)

// TestEvaluatePassing verifies a sized trade inside every limit passes
func TestEvaluatePassing(t *testing.T) {
	mgr := NewManager(sizerConfig())
	intent := TradeIntent{Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent)

	ok, reasons := mgr.Evaluate(intent, size)
	if !ok {
		t.Errorf("Evaluate failed: %v", reasons)
	}
}

// TestEvaluateMaxPositions verifies the open-position cap gate
func TestEvaluateMaxPositions(t *testing.T) {
	cfg := sizerConfig()
	cfg.MaxOpenPositions = 2
	mgr := NewManager(cfg)

	mgr.RegisterOpen("AAPL", 1000)
	mgr.RegisterOpen("TSLA", 1000)

	intent := TradeIntent{Symbol: "SPY", Side: "buy", AssetType: AssetStock, LimitPrice: 400}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent)

	ok, reasons := mgr.Evaluate(intent, size)
	if ok {
		t.Fatal("Evaluate should fail at the position cap")
	}
	if !containsReason(reasons, "max positions") {
		t.Errorf("reasons = %v, want max positions", reasons)
	}
}

// TestEvaluateSymbolExposure verifies the per-symbol exposure cap
func TestEvaluateSymbolExposure(t *testing.T) {
	mgr := NewManager(sizerConfig()) // MaxSymbolExposure 4000

	mgr.RegisterOpen("AAPL", 3000)

	intent := TradeIntent{Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent) // ~1950 notional

	ok, reasons := mgr.Evaluate(intent, size)
	if ok {
		t.Fatal("Evaluate should fail at the symbol exposure cap")
	}
	if !containsReason(reasons, "symbol exposure") {
		t.Errorf("reasons = %v, want symbol exposure", reasons)
	}

	// A different symbol is unaffected
	other := TradeIntent{Symbol: "TSLA", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	if ok, reasons := mgr.Evaluate(other, size); !ok {
		t.Errorf("other symbol should pass, got %v", reasons)
	}
}

// TestEvaluateDailyLossHalt verifies realized losses halt new proposals
func TestEvaluateDailyLossHalt(t *testing.T) {
	cfg := sizerConfig()
	cfg.MaxDailyLoss = 500
	cfg.MaxConsecutiveLosses = 10 // keep the breaker's loss-streak gate out of the way
	mgr := NewManager(cfg)

	mgr.RegisterOpen("AAPL", 1000)
	mgr.RegisterClose("AAPL", 1000, -600)

	intent := TradeIntent{Symbol: "TSLA", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent)

	ok, reasons := mgr.Evaluate(intent, size)
	if ok {
		t.Fatal("Evaluate should fail after the daily loss limit")
	}
	if len(reasons) == 0 {
		t.Error("expected at least one reason")
	}
}

// TestEvaluateResetsDailyLossOnNewDay verifies a halt from yesterday's
// losses clears at the daily boundary without needing a closing trade
func TestEvaluateResetsDailyLossOnNewDay(t *testing.T) {
	cfg := sizerConfig()
	cfg.MaxDailyLoss = 500
	mgr := NewManager(cfg)

	mgr.mu.Lock()
	mgr.dailyPnL = -2000
	mgr.dailyReset = time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	mgr.mu.Unlock()

	intent := TradeIntent{Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent)

	ok, reasons := mgr.Evaluate(intent, size)
	if !ok {
		t.Fatalf("Evaluate should pass on a new day, got %v", reasons)
	}
	if mgr.DailyPnL() != 0 {
		t.Errorf("DailyPnL = %.2f, want 0 after the daily reset", mgr.DailyPnL())
	}
}

// TestEvaluateCollectsAllReasons verifies every failed gate is reported
func TestEvaluateCollectsAllReasons(t *testing.T) {
	cfg := sizerConfig()
	cfg.MaxOpenPositions = 1
	mgr := NewManager(cfg)

	mgr.RegisterOpen("AAPL", 3900)

	intent := TradeIntent{Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150}
	size := mgr.Sizer().Size(Account{Equity: 10000, Cash: 10000}, intent)

	ok, reasons := mgr.Evaluate(intent, size)
	if ok {
		t.Fatal("Evaluate should fail")
	}
	if !containsReason(reasons, "max positions") || !containsReason(reasons, "symbol exposure") {
		t.Errorf("reasons = %v, want both position cap and exposure cap", reasons)
	}
}

// TestRegisterCloseClearsExposure verifies exposure bookkeeping on close
func TestRegisterCloseClearsExposure(t *testing.T) {
	mgr := NewManager(sizerConfig())

	mgr.RegisterOpen("AAPL", 2000)
	mgr.RegisterClose("AAPL", 2000, 150)

	if mgr.OpenPositionCount() != 0 {
		t.Errorf("OpenPositionCount = %d, want 0", mgr.OpenPositionCount())
	}
	if mgr.DailyPnL() != 150 {
		t.Errorf("DailyPnL = %.2f, want 150", mgr.DailyPnL())
	}

	metrics := mgr.Metrics()
	exposure := metrics["symbol_exposure"].(map[string]float64)
	if _, ok := exposure["AAPL"]; ok {
		t.Error("closed symbol should not remain in exposure map")
	}
}

func containsReason(reasons []string, substr string) bool {
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

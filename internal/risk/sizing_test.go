package risk

import (
	"strings"
	"testing"
)

func sizerConfig() *Config {
	return &Config{
		CashReservePercent:   20.0,
		MaxTradeValue:        2000.0,
		MaxCollateral:        5000.0,
		MaxOpenPositions:     5,
		MaxSymbolExposure:    4000.0,
		MaxDailyLoss:         1000.0,
		MaxConsecutiveLosses: 4,
		BreakerCooldownMins:  30,
	}
}

// TestSpendableReserveBuffer verifies the reserve comes off equity, not cash
func TestSpendableReserveBuffer(t *testing.T) {
	sizer := NewSizer(sizerConfig())

	// 20% of 10000 equity = 2000 reserved, 3000 cash -> 1000 spendable
	acct := Account{Equity: 10000, Cash: 3000}
	if got := sizer.Spendable(acct); got != 1000 {
		t.Errorf("Spendable = %.2f, want 1000", got)
	}

	// Fully deployed portfolio: positive cash but nothing spendable
	acct = Account{Equity: 50000, Cash: 5000}
	if got := sizer.Spendable(acct); got >= 0 {
		t.Errorf("Spendable = %.2f, want negative", got)
	}
}

// TestSizeStockBudget verifies quantity is bounded by the smaller of
// spendable cash and the per-trade cap
func TestSizeStockBudget(t *testing.T) {
	sizer := NewSizer(sizerConfig())

	// Spendable 8000, cap 2000 -> budget 2000, price 150 -> 13 shares
	acct := Account{Equity: 10000, Cash: 10000}
	intent := TradeIntent{Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150}

	result := sizer.Size(acct, intent)
	if result.Quantity != 13 {
		t.Errorf("Quantity = %d, want 13", result.Quantity)
	}
	if result.Notional > sizerConfig().MaxTradeValue {
		t.Errorf("Notional %.2f exceeds per-trade cap", result.Notional)
	}

	// Spendable below the cap binds instead
	acct = Account{Equity: 2000, Cash: 1000} // spendable 600
	result = sizer.Size(acct, intent)
	if result.Quantity != 4 {
		t.Errorf("Quantity = %d, want 4", result.Quantity)
	}
}

// TestSizeOptionContract verifies contracts use the 100x multiplier and
// floor to whole contracts
func TestSizeOptionContract(t *testing.T) {
	sizer := NewSizer(sizerConfig())
	acct := Account{Equity: 10000, Cash: 10000}

	// 3.50 debit per contract = 350 per unit; budget 2000 -> 5 contracts
	intent := TradeIntent{Symbol: "TSLA", Side: "buy", AssetType: AssetOption, LimitPrice: 3.50}
	result := sizer.Size(acct, intent)
	if result.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", result.Quantity)
	}
	if result.Notional != 1750 {
		t.Errorf("Notional = %.2f, want 1750", result.Notional)
	}
}

// TestSizeCreditSpreadCollateral verifies short legs are bounded by
// collateral, net of the credit received
func TestSizeCreditSpreadCollateral(t *testing.T) {
	sizer := NewSizer(sizerConfig())
	acct := Account{Equity: 50000, Cash: 50000}

	// 1.20 credit, 5.00 wide spread -> 500 collateral, 380 net per contract.
	// Per-trade cap 2000 / 380 = 5 contracts; collateral cap 5000/500 = 10.
	intent := TradeIntent{
		Symbol:            "SPY",
		Side:              "sell",
		AssetType:         AssetOption,
		LimitPrice:        -1.20,
		CollateralPerUnit: 5.00,
		Legs: []Leg{
			{Side: "sell", Ratio: 1, Strike: 440},
			{Side: "buy", Ratio: 1, Strike: 435},
		},
	}
	result := sizer.Size(acct, intent)
	if result.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", result.Quantity)
	}
	if result.Collateral != 2500 {
		t.Errorf("Collateral = %.2f, want 2500", result.Collateral)
	}
}

// TestSizeZeroQuantityReasons verifies every zero-size result names its
// binding constraint
func TestSizeZeroQuantityReasons(t *testing.T) {
	sizer := NewSizer(sizerConfig())

	// No spendable cash
	result := sizer.Size(Account{Equity: 50000, Cash: 2000}, TradeIntent{
		Symbol: "AAPL", Side: "buy", AssetType: AssetStock, LimitPrice: 150,
	})
	if result.Quantity != 0 {
		t.Fatalf("Quantity = %d, want 0", result.Quantity)
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "cash reserve") {
		t.Errorf("Reasons = %v, want cash reserve reason", result.Reasons)
	}

	// Unit cost above the per-trade cap
	result = sizer.Size(Account{Equity: 100000, Cash: 100000}, TradeIntent{
		Symbol: "BRK.A", Side: "buy", AssetType: AssetStock, LimitPrice: 600000,
	})
	if result.Quantity != 0 {
		t.Fatalf("Quantity = %d, want 0", result.Quantity)
	}
	if len(result.Reasons) == 0 {
		t.Error("Expected a limiting reason for oversized unit cost")
	}

	// Missing limit price
	result = sizer.Size(Account{Equity: 10000, Cash: 10000}, TradeIntent{
		Symbol: "AAPL", Side: "buy", AssetType: AssetStock,
	})
	if result.Quantity != 0 || len(result.Reasons) == 0 {
		t.Errorf("Expected zero quantity with reason for missing limit price, got %+v", result)
	}
}

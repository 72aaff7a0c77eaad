package executor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

func testPaper() (*Paper, *risk.Manager) {
	riskMgr := risk.NewManager(&risk.Config{
		CashReservePercent:   20.0,
		MaxTradeValue:        2000.0,
		MaxCollateral:        5000.0,
		MaxOpenPositions:     5,
		MaxSymbolExposure:    4000.0,
		MaxDailyLoss:         1000.0,
		MaxConsecutiveLosses: 4,
		BreakerCooldownMins:  30,
	})
	return NewPaper(10000, riskMgr, zerolog.Nop()), riskMgr
}

func approvedTrade(symbol, side string, qty int, price float64) *supervisor.PendingTrade {
	return &supervisor.PendingTrade{
		ID: "t-" + symbol + "-" + side,
		Intent: risk.TradeIntent{
			Symbol:     symbol,
			Side:       side,
			AssetType:  risk.AssetStock,
			LimitPrice: price,
		},
		Quantity: qty,
		Notional: float64(qty) * price,
		Status:   supervisor.StatusApproved,
	}
}

// TestExecuteOpensPosition verifies a buy ties up cash and opens a position
func TestExecuteOpensPosition(t *testing.T) {
	paper, riskMgr := testPaper()

	if err := paper.Execute(context.Background(), approvedTrade("AAPL", "buy", 10, 150)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	acct := paper.Account()
	if acct.Cash != 8500 {
		t.Errorf("Cash = %.2f, want 8500", acct.Cash)
	}
	if acct.Equity != 10000 {
		t.Errorf("Equity = %.2f, want 10000 (carried at cost)", acct.Equity)
	}
	if riskMgr.OpenPositionCount() != 1 {
		t.Errorf("OpenPositionCount = %d, want 1", riskMgr.OpenPositionCount())
	}
}

// TestExecuteCloseRealizesPnL verifies a sell against a long realizes P&L
func TestExecuteCloseRealizesPnL(t *testing.T) {
	paper, riskMgr := testPaper()

	if err := paper.Execute(context.Background(), approvedTrade("AAPL", "buy", 10, 150)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := paper.Execute(context.Background(), approvedTrade("AAPL", "sell", 10, 160)); err != nil {
		t.Fatalf("close: %v", err)
	}

	acct := paper.Account()
	if acct.Cash != 10100 {
		t.Errorf("Cash = %.2f, want 10100 after +100 realized", acct.Cash)
	}
	if riskMgr.DailyPnL() != 100 {
		t.Errorf("DailyPnL = %.2f, want 100", riskMgr.DailyPnL())
	}
	if len(paper.Positions()) != 0 {
		t.Error("position should be closed out")
	}
}

// TestExecutePartialClose verifies closing part of a position
func TestExecutePartialClose(t *testing.T) {
	paper, _ := testPaper()

	paper.Execute(context.Background(), approvedTrade("AAPL", "buy", 10, 150))
	paper.Execute(context.Background(), approvedTrade("AAPL", "sell", 4, 140))

	positions := paper.Positions()
	if len(positions) != 1 || positions[0].Quantity != 6 {
		t.Fatalf("Positions = %v, want 6 shares remaining", positions)
	}
}

// TestExecuteInsufficientCash verifies fills cannot overdraw cash
func TestExecuteInsufficientCash(t *testing.T) {
	paper, _ := testPaper()

	trade := approvedTrade("AAPL", "buy", 100, 150) // 15000 > 10000 cash
	if err := paper.Execute(context.Background(), trade); err == nil {
		t.Error("Execute should fail on insufficient cash")
	}
	if len(paper.Positions()) != 0 {
		t.Error("failed fill must not open a position")
	}
}

// TestExecuteZeroQuantity verifies zero-size trades are refused
func TestExecuteZeroQuantity(t *testing.T) {
	paper, _ := testPaper()

	trade := approvedTrade("AAPL", "buy", 0, 150)
	if err := paper.Execute(context.Background(), trade); err == nil {
		t.Error("Execute should refuse zero quantity")
	}
}

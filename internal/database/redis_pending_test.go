package database

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/config"
	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

func TestPendingStoreFallbackRoundTrip(t *testing.T) {
	store := NewRedisPendingStore(config.RedisConfig{Enabled: false}, zerolog.Nop())
	if store.Available() {
		t.Fatal("disabled store must not report Redis available")
	}

	ctx := context.Background()
	trade := &supervisor.PendingTrade{
		ID: "trade-1",
		Intent: risk.TradeIntent{
			Symbol:     "AAPL",
			Side:       "buy",
			AssetType:  risk.AssetStock,
			LimitPrice: 150,
		},
		Quantity:  10,
		Notional:  1500,
		Status:    supervisor.StatusPending,
		Mode:      supervisor.ModeApproval,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}

	if err := store.SavePending(ctx, trade); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	listed, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "trade-1" {
		t.Fatalf("listed = %v, want trade-1", listed)
	}
	if listed[0].Intent.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", listed[0].Intent.Symbol)
	}

	if err := store.DeletePending(ctx, "trade-1"); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}
	listed, _ = store.ListPending(ctx)
	if len(listed) != 0 {
		t.Errorf("listed after delete = %d, want 0", len(listed))
	}
}

// TestPendingStoreRecoveryProbe verifies the dropped-Redis path keeps
// retrying without hammering the server, and that the fallback serves
// reads and writes while the retry fails.
func TestPendingStoreRecoveryProbe(t *testing.T) {
	// Closed port so dials fail immediately
	store := &RedisPendingStore{
		client: redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
		}),
		logger:   zerolog.Nop(),
		fallback: make(map[string]*supervisor.PendingTrade),
	}
	defer store.Close()

	ctx := context.Background()
	store.maybeRecover(ctx)
	if store.Available() {
		t.Fatal("store must stay unavailable while the probe fails")
	}

	first := store.lastProbe.Load()
	if first == 0 {
		t.Fatal("probe should have been attempted")
	}

	// A second call inside the probe interval must not ping again
	store.maybeRecover(ctx)
	if got := store.lastProbe.Load(); got != first {
		t.Error("probe should be throttled inside the interval")
	}

	// Writes during the outage land in the fallback
	trade := &supervisor.PendingTrade{ID: "trade-2", Status: supervisor.StatusPending}
	if err := store.SavePending(ctx, trade); err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	listed, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "trade-2" {
		t.Fatalf("listed = %v, want trade-2", listed)
	}
}

func TestPendingStoreDeleteUnknownID(t *testing.T) {
	store := NewRedisPendingStore(config.RedisConfig{Enabled: false}, zerolog.Nop())
	if err := store.DeletePending(context.Background(), "missing"); err != nil {
		t.Errorf("deleting an unknown id should be a no-op, got %v", err)
	}
}

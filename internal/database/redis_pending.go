package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/config"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

const (
	// pendingKeyPrefix is the prefix for persisted pending trades
	// Format: supervisor:pending:{tradeID}
	pendingKeyPrefix = "supervisor:pending"

	// pendingSetKey holds the ids of all persisted pending trades
	pendingSetKey = "supervisor:pending:ids"

	// recoveryProbeInterval throttles re-pings after Redis drops out
	recoveryProbeInterval = 30 * time.Second
)

// RedisPendingStore persists pending trades in Redis so an operator
// queue survives restarts. When Redis is unreachable it degrades to an
// in-memory map and keeps probing for recovery.
type RedisPendingStore struct {
	client    *redis.Client
	available atomic.Bool
	lastProbe atomic.Int64
	logger    zerolog.Logger

	mu       sync.RWMutex
	fallback map[string]*supervisor.PendingTrade
}

// NewRedisPendingStore connects to Redis. A nil-client or failed ping
// store still works through the in-memory fallback.
func NewRedisPendingStore(cfg config.RedisConfig, logger zerolog.Logger) *RedisPendingStore {
	store := &RedisPendingStore{
		logger:   logger,
		fallback: make(map[string]*supervisor.PendingTrade),
	}

	if !cfg.Enabled {
		logger.Info().Msg("Redis disabled, pending trades held in memory only")
		return store
	}

	store.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory pending store")
		return store
	}

	store.available.Store(true)
	logger.Info().Str("address", cfg.Address).Msg("Connected to Redis for pending trades")
	return store
}

// Available reports whether Redis is currently backing the store
func (s *RedisPendingStore) Available() bool {
	return s.available.Load()
}

// SavePending persists a pending trade keyed by id. The key carries a
// TTL slightly past the trade's expiry so abandoned entries age out of
// Redis on their own.
func (s *RedisPendingStore) SavePending(ctx context.Context, trade *supervisor.PendingTrade) error {
	s.mu.Lock()
	s.fallback[trade.ID] = trade
	s.mu.Unlock()

	s.maybeRecover(ctx)
	if !s.available.Load() {
		return nil
	}

	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to serialize pending trade: %w", err)
	}

	ttl := time.Until(trade.ExpiresAt) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	key := pendingKey(trade.ID)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, pendingSetKey, trade.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		s.markUnavailable(err)
		return nil
	}
	return nil
}

// DeletePending removes a decided trade
func (s *RedisPendingStore) DeletePending(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.fallback, id)
	s.mu.Unlock()

	s.maybeRecover(ctx)
	if !s.available.Load() {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, pendingKey(id))
	pipe.SRem(ctx, pendingSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		s.markUnavailable(err)
	}
	return nil
}

// ListPending returns every persisted pending trade
func (s *RedisPendingStore) ListPending(ctx context.Context) ([]*supervisor.PendingTrade, error) {
	s.maybeRecover(ctx)
	if !s.available.Load() {
		return s.listFallback(), nil
	}

	ids, err := s.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		s.markUnavailable(err)
		return s.listFallback(), nil
	}

	trades := make([]*supervisor.PendingTrade, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, pendingKey(id)).Bytes()
		if err == redis.Nil {
			// Key aged out; drop the stale set member
			s.client.SRem(ctx, pendingSetKey, id)
			continue
		}
		if err != nil {
			s.markUnavailable(err)
			return s.listFallback(), nil
		}

		var trade supervisor.PendingTrade
		if err := json.Unmarshal(data, &trade); err != nil {
			s.logger.Warn().Err(err).Str("trade_id", id).Msg("Discarding unreadable pending trade")
			continue
		}
		trades = append(trades, &trade)
	}
	return trades, nil
}

// Close releases the Redis connection
func (s *RedisPendingStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *RedisPendingStore) listFallback() []*supervisor.PendingTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]*supervisor.PendingTrade, 0, len(s.fallback))
	for _, trade := range s.fallback {
		trades = append(trades, trade)
	}
	return trades
}

// maybeRecover re-pings a dropped Redis at most once per probe interval.
// On success the flag flips back and the fallback contents are written
// through so nothing queued during the outage is lost on restart.
func (s *RedisPendingStore) maybeRecover(ctx context.Context) {
	if s.client == nil || s.available.Load() {
		return
	}

	now := time.Now().UnixNano()
	last := s.lastProbe.Load()
	if now-last < int64(recoveryProbeInterval) || !s.lastProbe.CompareAndSwap(last, now) {
		return
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return
	}

	s.available.Store(true)
	s.logger.Info().Msg("Redis recovered, resyncing pending trades")
	for _, trade := range s.listFallback() {
		if err := s.SavePending(ctx, trade); err != nil {
			s.logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("Failed to resync pending trade")
		}
	}
}

func (s *RedisPendingStore) markUnavailable(err error) {
	if s.available.CompareAndSwap(true, false) {
		s.logger.Warn().Err(err).Msg("Redis unavailable, pending trades held in memory only")
	}
}

func pendingKey(id string) string {
	return fmt.Sprintf("%s:%s", pendingKeyPrefix, id)
}

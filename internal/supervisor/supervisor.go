package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/internal/events"
	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
)

// Config holds approval workflow configuration
type Config struct {
	Mode          Mode
	PendingTTL    time.Duration
	SweepInterval time.Duration
}

// AccountSource provides the current buying-power snapshot for sizing
type AccountSource interface {
	Account() risk.Account
}

// Executor applies an approved trade
type Executor interface {
	Execute(ctx context.Context, trade *PendingTrade) error
}

// PendingStore persists pending trades across restarts
type PendingStore interface {
	SavePending(ctx context.Context, trade *PendingTrade) error
	DeletePending(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]*PendingTrade, error)
}

// AuditStore appends decisions to the durable audit trail. Implementations
// must tolerate being called for every lifecycle transition of a trade.
type AuditStore interface {
	RecordDecision(ctx context.Context, trade *PendingTrade) error
}

// Stats are cumulative workflow counters
type Stats struct {
	Proposed     int64 `json:"proposed"`
	AutoApproved int64 `json:"auto_approved"`
	Approved     int64 `json:"approved"`
	Rejected     int64 `json:"rejected"`
	Expired      int64 `json:"expired"`
	RiskBlocked  int64 `json:"risk_blocked"`
	Failed       int64 `json:"failed"`
}

// Supervisor is the approval state machine between trade proposals and
// execution. Every proposal is sized and gated; what happens next depends
// on the supervision mode.
type Supervisor struct {
	config   Config
	mode     Mode
	risk     *risk.Manager
	accounts AccountSource
	executor Executor
	store    PendingStore
	audit    AuditStore
	bus      *events.Bus
	logger   zerolog.Logger

	pending map[string]*PendingTrade
	stats   Stats
	mu      sync.RWMutex
}

// New creates a supervisor. store and audit may be nil; pending trades are
// then held in memory only and no durable audit is written.
func New(cfg Config, riskMgr *risk.Manager, accounts AccountSource, executor Executor,
	store PendingStore, audit AuditStore, bus *events.Bus, logger zerolog.Logger) *Supervisor {

	return &Supervisor{
		config:   cfg,
		mode:     cfg.Mode,
		risk:     riskMgr,
		accounts: accounts,
		executor: executor,
		store:    store,
		audit:    audit,
		bus:      bus,
		logger:   logger,
		pending:  make(map[string]*PendingTrade),
	}
}

// Restore loads persisted pending trades on startup. Trades whose TTL lapsed
// while the service was down are expired immediately.
func (s *Supervisor) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	trades, err := s.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("restore pending trades: %w", err)
	}

	now := time.Now()
	restored, lapsed := 0, 0
	for _, trade := range trades {
		if trade.Status != StatusPending {
			continue
		}
		if now.After(trade.ExpiresAt) {
			s.expire(ctx, trade)
			lapsed++
			continue
		}
		s.mu.Lock()
		s.pending[trade.ID] = trade
		s.mu.Unlock()
		restored++
	}

	s.logger.Info().Int("restored", restored).Int("expired", lapsed).Msg("pending trades restored")
	return nil
}

// Start runs the expiry sweeper until the context is cancelled
func (s *Supervisor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Mode returns the current supervision mode
func (s *Supervisor) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode changes the supervision mode. Pending trades are unaffected: they
// still need an operator decision or an expiry.
func (s *Supervisor) SetMode(mode Mode, operator string) {
	s.mu.Lock()
	old := s.mode
	s.mode = mode
	s.mu.Unlock()

	if old != mode {
		s.logger.Info().Str("old", string(old)).Str("new", string(mode)).Str("operator", operator).Msg("supervision mode changed")
		s.bus.PublishModeChanged(string(old), string(mode), operator)
	}
}

// Propose sizes and gates a trade intent and dispatches it per the current
// supervision mode. Every outcome lands in the audit trail.
func (s *Supervisor) Propose(ctx context.Context, intent risk.TradeIntent) (Decision, error) {
	acct := s.accounts.Account()
	size := s.risk.Sizer().Size(acct, intent)
	ok, reasons := s.risk.Evaluate(intent, size)

	mode := s.Mode()
	trade := &PendingTrade{
		ID:         uuid.New().String(),
		Intent:     intent,
		Quantity:   size.Quantity,
		Notional:   size.Notional,
		Collateral: size.Collateral,
		Mode:       mode,
		Reasons:    reasons,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.stats.Proposed++
	s.mu.Unlock()

	s.bus.PublishTradeDecision(events.EventTradeProposed, trade.ID, intent.Symbol, intent.Side, trade.Quantity, trade.Notional, nil)

	if !ok {
		trade.Status = StatusRejected
		trade.DecidedAt = time.Now()
		s.mu.Lock()
		s.stats.RiskBlocked++
		s.mu.Unlock()

		s.logger.Warn().Str("trade_id", trade.ID).Str("symbol", intent.Symbol).Strs("reasons", reasons).Msg("proposal blocked by risk gates")
		s.bus.PublishTradeDecision(events.EventRiskBlocked, trade.ID, intent.Symbol, intent.Side, trade.Quantity, trade.Notional, reasons)
		s.recordAudit(ctx, trade)
		return s.decision(trade), nil
	}

	switch mode {
	case ModePaused:
		trade.Status = StatusRejected
		trade.Reasons = []string{"supervision paused"}
		trade.DecidedAt = time.Now()
		s.mu.Lock()
		s.stats.Rejected++
		s.mu.Unlock()

		s.bus.PublishTradeDecision(events.EventTradeRejected, trade.ID, intent.Symbol, intent.Side, trade.Quantity, trade.Notional, trade.Reasons)
		s.recordAudit(ctx, trade)
		return s.decision(trade), nil

	case ModeAuto:
		trade.Status = StatusApproved
		trade.Operator = "auto"
		trade.DecidedAt = time.Now()
		s.mu.Lock()
		s.stats.AutoApproved++
		s.mu.Unlock()

		s.bus.PublishTradeDecision(events.EventTradeApproved, trade.ID, intent.Symbol, intent.Side, trade.Quantity, trade.Notional, nil)
		s.execute(ctx, trade)
		s.recordAudit(ctx, trade)
		return s.decision(trade), nil

	default: // ModeApproval
		trade.Status = StatusPending
		trade.ExpiresAt = trade.CreatedAt.Add(s.config.PendingTTL)

		s.mu.Lock()
		s.pending[trade.ID] = trade
		s.mu.Unlock()

		s.persistPending(ctx, trade)
		s.logger.Info().Str("trade_id", trade.ID).Str("symbol", intent.Symbol).Int("quantity", trade.Quantity).Time("expires_at", trade.ExpiresAt).Msg("trade queued for approval")
		s.bus.PublishTradeDecision(events.EventTradePending, trade.ID, intent.Symbol, intent.Side, trade.Quantity, trade.Notional, nil)
		s.recordAudit(ctx, trade)
		return s.decision(trade), nil
	}
}

// Approve applies an operator approval. Risk gates are re-evaluated at
// decision time: the account can have moved since the proposal, and a trade
// that no longer fits is rejected with the fresh gate reasons.
func (s *Supervisor) Approve(ctx context.Context, id, operator string) (*PendingTrade, error) {
	trade, err := s.takePending(ctx, id)
	if err != nil {
		return nil, err
	}

	acct := s.accounts.Account()
	size := s.risk.Sizer().Size(acct, trade.Intent)
	ok, reasons := s.risk.Evaluate(trade.Intent, size)
	if !ok {
		trade.Status = StatusRejected
		trade.Operator = operator
		trade.Reasons = append([]string{"stale at approval"}, reasons...)
		trade.DecidedAt = time.Now()

		s.mu.Lock()
		s.stats.Rejected++
		s.mu.Unlock()

		s.logger.Warn().Str("trade_id", trade.ID).Strs("reasons", reasons).Msg("approval failed re-check")
		s.bus.PublishTradeDecision(events.EventTradeRejected, trade.ID, trade.Intent.Symbol, trade.Intent.Side, trade.Quantity, trade.Notional, trade.Reasons)
		s.recordAudit(ctx, trade)
		return trade, nil
	}

	// The re-check may size differently than the original proposal;
	// the approved quantity is the fresh one.
	trade.Quantity = size.Quantity
	trade.Notional = size.Notional
	trade.Collateral = size.Collateral
	trade.Status = StatusApproved
	trade.Operator = operator
	trade.DecidedAt = time.Now()

	s.mu.Lock()
	s.stats.Approved++
	s.mu.Unlock()

	s.logger.Info().Str("trade_id", trade.ID).Str("operator", operator).Msg("trade approved")
	s.bus.PublishTradeDecision(events.EventTradeApproved, trade.ID, trade.Intent.Symbol, trade.Intent.Side, trade.Quantity, trade.Notional, nil)
	s.execute(ctx, trade)
	s.recordAudit(ctx, trade)
	return trade, nil
}

// Reject applies an operator rejection
func (s *Supervisor) Reject(ctx context.Context, id, operator, reason string) (*PendingTrade, error) {
	trade, err := s.takePending(ctx, id)
	if err != nil {
		return nil, err
	}

	trade.Status = StatusRejected
	trade.Operator = operator
	if reason != "" {
		trade.Reasons = []string{reason}
	}
	trade.DecidedAt = time.Now()

	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()

	s.logger.Info().Str("trade_id", trade.ID).Str("operator", operator).Str("reason", reason).Msg("trade rejected")
	s.bus.PublishTradeDecision(events.EventTradeRejected, trade.ID, trade.Intent.Symbol, trade.Intent.Side, trade.Quantity, trade.Notional, trade.Reasons)
	s.recordAudit(ctx, trade)
	return trade, nil
}

// Pending returns pending trades ordered oldest first
func (s *Supervisor) Pending() []*PendingTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]*PendingTrade, 0, len(s.pending))
	for _, trade := range s.pending {
		copied := *trade
		trades = append(trades, &copied)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].CreatedAt.Before(trades[j].CreatedAt) })
	return trades
}

// Get returns one pending trade by id
func (s *Supervisor) Get(id string) (*PendingTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade, ok := s.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *trade
	return &copied, nil
}

// Stats returns cumulative workflow counters plus the live pending count
func (s *Supervisor) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"mode":          string(s.mode),
		"pending":       len(s.pending),
		"proposed":      s.stats.Proposed,
		"auto_approved": s.stats.AutoApproved,
		"approved":      s.stats.Approved,
		"rejected":      s.stats.Rejected,
		"expired":       s.stats.Expired,
		"risk_blocked":  s.stats.RiskBlocked,
		"failed":        s.stats.Failed,
	}
}

// takePending removes a trade from the pending set for a decision. The first
// caller to remove it wins any race between operators and the sweeper; a
// trade that already lapsed its TTL is expired here rather than handed out.
func (s *Supervisor) takePending(ctx context.Context, id string) (*PendingTrade, error) {
	s.mu.Lock()
	trade, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if trade.Status.terminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDecided, trade.Status)
	}
	delete(s.pending, id)
	s.mu.Unlock()

	if time.Now().After(trade.ExpiresAt) {
		s.expire(ctx, trade)
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDecided, StatusExpired)
	}

	s.removePersisted(ctx, trade.ID)
	return trade, nil
}

// sweep expires pending trades past their TTL
func (s *Supervisor) sweep(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var lapsed []*PendingTrade
	for id, trade := range s.pending {
		if now.After(trade.ExpiresAt) {
			delete(s.pending, id)
			lapsed = append(lapsed, trade)
		}
	}
	s.mu.Unlock()

	for _, trade := range lapsed {
		s.expire(ctx, trade)
	}
}

func (s *Supervisor) expire(ctx context.Context, trade *PendingTrade) {
	trade.Status = StatusExpired
	trade.DecidedAt = time.Now()

	s.mu.Lock()
	s.stats.Expired++
	s.mu.Unlock()

	s.removePersisted(ctx, trade.ID)
	s.logger.Info().Str("trade_id", trade.ID).Str("symbol", trade.Intent.Symbol).Msg("pending trade expired")
	s.bus.PublishTradeDecision(events.EventTradeExpired, trade.ID, trade.Intent.Symbol, trade.Intent.Side, trade.Quantity, trade.Notional, nil)
	s.recordAudit(ctx, trade)
}

func (s *Supervisor) execute(ctx context.Context, trade *PendingTrade) {
	if err := s.executor.Execute(ctx, trade); err != nil {
		trade.Status = StatusFailed
		trade.Reasons = append(trade.Reasons, fmt.Sprintf("execution: %v", err))

		s.mu.Lock()
		s.stats.Failed++
		s.mu.Unlock()

		s.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("execution failed")
		s.bus.PublishError("supervisor", "execution failed", err)
		return
	}

	trade.Status = StatusExecuted
	s.bus.PublishTradeDecision(events.EventTradeExecuted, trade.ID, trade.Intent.Symbol, trade.Intent.Side, trade.Quantity, trade.Notional, nil)
}

func (s *Supervisor) persistPending(ctx context.Context, trade *PendingTrade) {
	if s.store == nil {
		return
	}
	if err := s.store.SavePending(ctx, trade); err != nil {
		s.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("failed to persist pending trade")
	}
}

func (s *Supervisor) removePersisted(ctx context.Context, id string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeletePending(ctx, id); err != nil {
		s.logger.Error().Err(err).Str("trade_id", id).Msg("failed to remove persisted trade")
	}
}

func (s *Supervisor) recordAudit(ctx context.Context, trade *PendingTrade) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordDecision(ctx, trade); err != nil {
		s.logger.Error().Err(err).Str("trade_id", trade.ID).Msg("failed to record decision audit")
	}
}

func (s *Supervisor) decision(trade *PendingTrade) Decision {
	return Decision{
		TradeID:  trade.ID,
		Status:   trade.Status,
		Quantity: trade.Quantity,
		Notional: trade.Notional,
		Mode:     trade.Mode,
		Reasons:  trade.Reasons,
	}
}

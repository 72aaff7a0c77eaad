package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
)

// Mode is the supervision mode governing how proposals are dispatched
type Mode string

const (
	// ModeAuto approves and executes gated proposals immediately
	ModeAuto Mode = "auto"
	// ModeApproval queues gated proposals for an operator decision
	ModeApproval Mode = "approval"
	// ModePaused rejects every new proposal
	ModePaused Mode = "paused"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeApproval, ModePaused:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown supervision mode %q", s)
	}
}

// TradeStatus is the lifecycle state of a proposed trade
type TradeStatus string

const (
	StatusPending  TradeStatus = "pending"
	StatusApproved TradeStatus = "approved"
	StatusRejected TradeStatus = "rejected"
	StatusExpired  TradeStatus = "expired"
	StatusExecuted TradeStatus = "executed"
	StatusFailed   TradeStatus = "failed" // Approved but execution errored
)

// terminal reports whether a status permits no further transitions
func (s TradeStatus) terminal() bool {
	return s != StatusPending
}

// PendingTrade is a sized proposal moving through the approval workflow
type PendingTrade struct {
	ID         string           `json:"id"`
	Intent     risk.TradeIntent `json:"intent"`
	Quantity   int              `json:"quantity"`
	Notional   float64          `json:"notional"`
	Collateral float64          `json:"collateral"`
	Status     TradeStatus      `json:"status"`
	Mode       Mode             `json:"mode"` // Mode in effect when proposed
	Reasons    []string         `json:"reasons,omitempty"`
	Operator   string           `json:"operator,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at,omitempty"`
	DecidedAt  time.Time        `json:"decided_at,omitempty"`
}

// Decision is the immediate outcome returned to the proposer
type Decision struct {
	TradeID  string      `json:"trade_id"`
	Status   TradeStatus `json:"status"`
	Quantity int         `json:"quantity"`
	Notional float64     `json:"notional"`
	Mode     Mode        `json:"mode"`
	Reasons  []string    `json:"reasons,omitempty"`
}

var (
	// ErrNotFound is returned for an unknown trade id
	ErrNotFound = errors.New("pending trade not found")
	// ErrAlreadyDecided is returned when a trade is past the pending state
	ErrAlreadyDecided = errors.New("trade already decided")
)

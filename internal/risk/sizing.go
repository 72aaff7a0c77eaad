package risk

import (
	"fmt"
	"math"
)

// Sizer computes position sizes under the cash-reserve buffer, the per-trade
// notional cap, and the collateral cap for short legs.
type Sizer struct {
	config *Config
}

// NewSizer creates a new position sizer
func NewSizer(config *Config) *Sizer {
	return &Sizer{config: config}
}

// Spendable returns the cash available for new trades after the reserve
// buffer. The reserve is a percentage of total equity, not of cash, so a
// portfolio that is mostly deployed can have zero spendable cash even with
// a positive cash balance.
func (s *Sizer) Spendable(acct Account) float64 {
	reserve := acct.Equity * (s.config.CashReservePercent / 100)
	return acct.Cash - reserve
}

// Size calculates the largest quantity that fits every per-trade limit.
// A zero quantity is a valid result and carries the binding constraint.
func (s *Sizer) Size(acct Account, intent TradeIntent) SizeResult {
	multiplier := 1.0
	if intent.AssetType == AssetOption {
		multiplier = OptionMultiplier
	}

	spendable := s.Spendable(acct)
	result := SizeResult{Spendable: spendable}

	if intent.LimitPrice == 0 {
		result.Reasons = append(result.Reasons, "limit price not set")
		return result
	}

	if spendable <= 0 {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("cash reserve: spendable %.2f after %.1f%% reserve", spendable, s.config.CashReservePercent))
		return result
	}

	// Per-unit cost: debit orders consume premium, credit orders consume
	// the collateral held against the short legs.
	unitDebit := intent.LimitPrice * multiplier
	unitCollateral := intent.CollateralPerUnit * multiplier

	unitCost := unitDebit
	if intent.IsCredit() {
		// Credit received reduces the collateral actually tied up.
		unitCost = unitCollateral + unitDebit
	} else if intent.HasShortLeg() {
		// Debit multileg with a short wing still posts collateral.
		unitCost = unitDebit + unitCollateral
	}
	result.UnitCost = unitCost

	if unitCost <= 0 {
		result.Reasons = append(result.Reasons, "order has no capital requirement; refusing to size")
		return result
	}

	budget := math.Min(spendable, s.config.MaxTradeValue)

	if intent.HasShortLeg() && unitCollateral > 0 {
		maxByCollateral := s.config.MaxCollateral / unitCollateral
		if maxByCollateral < budget/unitCost {
			budget = maxByCollateral * unitCost
			if math.Floor(maxByCollateral) < 1 {
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("collateral cap: %.2f per unit exceeds max collateral %.2f", unitCollateral, s.config.MaxCollateral))
				return result
			}
		}
	}

	qty := int(math.Floor(budget / unitCost))
	if qty < 1 {
		limiting := "per-trade cap"
		if spendable < s.config.MaxTradeValue {
			limiting = "spendable cash"
		}
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%s: unit cost %.2f exceeds budget %.2f", limiting, unitCost, budget))
		return result
	}

	result.Quantity = qty
	result.Notional = float64(qty) * unitCost
	if intent.HasShortLeg() {
		result.Collateral = float64(qty) * unitCollateral
	}

	return result
}

package risk

// AssetType distinguishes share trades from option contract trades
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetOption AssetType = "option"
)

// OptionMultiplier is the standard equity option contract multiplier
const OptionMultiplier = 100.0

// Account is a snapshot of buying power used for sizing decisions
type Account struct {
	Equity float64 `json:"equity"`
	Cash   float64 `json:"cash"`
}

// Leg is one leg of a multileg option order
type Leg struct {
	Side   string  `json:"side"` // "buy" or "sell"
	Ratio  int     `json:"ratio"`
	Strike float64 `json:"strike,omitempty"`
	Expiry string  `json:"expiry,omitempty"`
}

// TradeIntent is a proposed trade before sizing and gating.
// LimitPrice is the net per-unit price: positive for debit orders, negative
// for credit orders. CollateralPerUnit is the margin a broker would hold per
// contract for short legs; zero for plain long trades.
type TradeIntent struct {
	Symbol            string    `json:"symbol"`
	Side              string    `json:"side"` // "buy" or "sell"
	AssetType         AssetType `json:"asset_type"`
	LimitPrice        float64   `json:"limit_price"`
	Legs              []Leg     `json:"legs,omitempty"`
	CollateralPerUnit float64   `json:"collateral_per_unit,omitempty"`
	Strategy          string    `json:"strategy,omitempty"`
}

// IsCredit reports whether the order collects premium instead of paying it
func (t TradeIntent) IsCredit() bool {
	return t.LimitPrice < 0
}

// HasShortLeg reports whether any leg is sold (and therefore needs collateral)
func (t TradeIntent) HasShortLeg() bool {
	if t.Side == "sell" && len(t.Legs) == 0 {
		return true
	}
	for _, leg := range t.Legs {
		if leg.Side == "sell" {
			return true
		}
	}
	return false
}

// SizeResult is the outcome of position sizing. Quantity is zero when no
// size fits the limits; Reasons then names the binding constraint.
type SizeResult struct {
	Quantity   int      `json:"quantity"`
	UnitCost   float64  `json:"unit_cost"`
	Notional   float64  `json:"notional"`
	Collateral float64  `json:"collateral"`
	Spendable  float64  `json:"spendable"`
	Reasons    []string `json:"reasons,omitempty"`
}

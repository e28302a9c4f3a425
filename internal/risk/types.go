package risk

// Config bounds what the trader is allowed to do per decision.
type Config struct {
	// MinConfidence is the floor a decision's best confidence must clear.
	MinConfidence float64
	// MaxOpenPositions caps concurrent open positions across all symbols.
	MaxOpenPositions int
	// RiskPerTradePct is the share of balance committed as margin, capped
	// at MaxMarginPct.
	RiskPerTradePct float64
	// Leverage is the configured maximum; lower-confidence decisions get less.
	Leverage int
}

// maxMarginPct caps the margin of any single trade regardless of config.
const maxMarginPct = 5.0

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:    60,
		MaxOpenPositions: 3,
		RiskPerTradePct:  5,
		Leverage:         10,
	}
}

// PositionPlan is the sized, leveraged order the executor should place.
type PositionPlan struct {
	// Margin is the collateral committed, in quote currency.
	Margin float64
	// Leverage after confidence de-escalation.
	Leverage int
	// Size is the position quantity in base currency.
	Size float64
}

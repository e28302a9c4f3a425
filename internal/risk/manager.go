package risk

import (
	"fmt"
	"log"
	"sync"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/strategy"
)

// Manager vets decisions and sizes positions.
type Manager struct {
	mu  sync.RWMutex
	cfg Config
}

// NewManager builds a risk manager, filling zero fields from DefaultConfig.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxOpenPositions <= 0 {
		cfg.MaxOpenPositions = def.MaxOpenPositions
	}
	if cfg.RiskPerTradePct <= 0 {
		cfg.RiskPerTradePct = def.RiskPerTradePct
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = def.Leverage
	}
	log.Printf("risk: min_confidence=%.0f max_positions=%d leverage=%dx",
		cfg.MinConfidence, cfg.MaxOpenPositions, cfg.Leverage)
	return &Manager{cfg: cfg}
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Validate decides whether a consensus decision may be executed given the
// current number of open positions.
func (m *Manager) Validate(d *consensus.Decision, openPositions int) error {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	if d == nil {
		return fmt.Errorf("no decision")
	}
	if d.Confidence < cfg.MinConfidence {
		return fmt.Errorf("confidence %.1f below minimum %.1f", d.Confidence, cfg.MinConfidence)
	}
	if openPositions >= cfg.MaxOpenPositions {
		return fmt.Errorf("open positions %d at limit %d", openPositions, cfg.MaxOpenPositions)
	}
	if d.EntryPrice <= 0 {
		return fmt.Errorf("entry price %.2f is not positive", d.EntryPrice)
	}

	// Protective levels must sit on the correct side of entry, otherwise
	// the stop would fill instantly or never.
	switch d.Direction {
	case strategy.DirectionLong:
		if d.StopLoss > 0 && d.StopLoss >= d.EntryPrice {
			return fmt.Errorf("long stop loss %.2f not below entry %.2f", d.StopLoss, d.EntryPrice)
		}
		if d.TakeProfit > 0 && d.TakeProfit <= d.EntryPrice {
			return fmt.Errorf("long take profit %.2f not above entry %.2f", d.TakeProfit, d.EntryPrice)
		}
	case strategy.DirectionShort:
		if d.StopLoss > 0 && d.StopLoss <= d.EntryPrice {
			return fmt.Errorf("short stop loss %.2f not above entry %.2f", d.StopLoss, d.EntryPrice)
		}
		if d.TakeProfit > 0 && d.TakeProfit >= d.EntryPrice {
			return fmt.Errorf("short take profit %.2f not below entry %.2f", d.TakeProfit, d.EntryPrice)
		}
	default:
		return fmt.Errorf("unknown direction %q", d.Direction)
	}
	return nil
}

// CalculatePositionSize turns available balance and a validated decision into
// a concrete plan. It returns nil, not an error, when nothing should be
// traded: an unsizeable decision is a normal outcome, not a fault.
func (m *Manager) CalculatePositionSize(balance float64, d *consensus.Decision) *PositionPlan {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	if balance <= 0 || d == nil || d.EntryPrice <= 0 {
		return nil
	}

	marginPct := cfg.RiskPerTradePct
	if marginPct > maxMarginPct {
		marginPct = maxMarginPct
	}
	margin := balance * marginPct / 100

	leverage := scaleLeverage(cfg.Leverage, d.Confidence)
	size := margin * float64(leverage) / d.EntryPrice
	if size <= 0 {
		return nil
	}
	return &PositionPlan{Margin: margin, Leverage: leverage, Size: size}
}

// scaleLeverage de-escalates leverage for lower-confidence decisions. It
// never raises above the configured value and never drops below 1x.
func scaleLeverage(configured int, confidence float64) int {
	leverage := configured
	switch {
	case confidence < 75:
		leverage = configured / 2
	case confidence < 85:
		leverage = int(float64(configured) * 0.75)
	}
	if leverage < 1 {
		leverage = 1
	}
	return leverage
}

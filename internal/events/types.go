package events

import "time"

// Event enumerates high-level topics inside the trader.
type Event string

const (
	EventPriceTick        Event = "price_tick"
	EventStrategySignal   Event = "strategy_signal"
	EventDecision         Event = "decision"
	EventOrderSubmitted   Event = "order.submitted"
	EventOrderFilled      Event = "order.filled"
	EventPositionOpened   Event = "position.opened"
	EventPositionClosed   Event = "position.closed"
	EventRiskAlert        Event = "risk_alert"
	EventConnectionChange Event = "connection_change"
)

// PriceTick is published on every ticker push from the exchange stream.
type PriceTick struct {
	Symbol    string
	Price     float64
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// RiskAlert is published when a decision is rejected by risk checks.
type RiskAlert struct {
	Symbol string
	Reason string
	Time   time.Time
}

// ConnectionChange is published when a websocket connection changes state.
type ConnectionChange struct {
	Private bool
	State   string
	Time    time.Time
}

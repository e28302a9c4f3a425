package db

import "time"

// Position statuses.
const (
	PositionOpen   = "OPEN"
	PositionClosed = "CLOSED"
)

// Position is one opened futures position and its protective orders.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Strategy   string    `json:"strategy"`
	Direction  string    `json:"direction"`
	EntryPrice float64   `json:"entryPrice"`
	Size       float64   `json:"size"`
	Leverage   int       `json:"leverage"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	ClosePrice float64   `json:"closePrice"`
	PnL        float64   `json:"pnl"`
	OpenedAt   time.Time `json:"openedAt"`
	ClosedAt   time.Time `json:"closedAt,omitempty"`
}

// Decision records one consensus outcome, executed or not.
type Decision struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Action        string    `json:"action"`
	Direction     string    `json:"direction"`
	Confidence    float64   `json:"confidence"`
	AvgConfidence float64   `json:"avgConfidence"`
	Strategies    string    `json:"strategies"`
	EntryPrice    float64   `json:"entryPrice"`
	StopLoss      float64   `json:"stopLoss"`
	TakeProfit    float64   `json:"takeProfit"`
	Executed      bool      `json:"executed"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}

// StrategyInstance mirrors one entry of the strategies config file.
type StrategyInstance struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StrategyType string    `json:"strategyType"`
	Symbol       string    `json:"symbol"`
	Interval     string    `json:"interval"`
	Parameters   string    `json:"parameters"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DcaOrder records one accumulation fill placed by a DCA-style strategy.
type DcaOrder struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Strategy  string    `json:"strategy"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	OrderID   string    `json:"orderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RiskMetrics aggregates one trading day.
type RiskMetrics struct {
	Date        string  `json:"date"`
	DailyPnL    float64 `json:"dailyPnl"`
	DailyTrades int     `json:"dailyTrades"`
	DailyWins   int     `json:"dailyWins"`
	DailyLosses int     `json:"dailyLosses"`
}

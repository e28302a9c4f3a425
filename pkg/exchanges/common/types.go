package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// MarginMode distinguishes futures margin modes.
type MarginMode string

const (
	MarginCrossed  MarginMode = "crossed"
	MarginIsolated MarginMode = "isolated"
)

// OrderRequest captures an order intent to be sent to the exchange.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	Price      float64 // required for LIMIT
	ClientID   string  // optional client order id
	ReduceOnly bool
	Leverage   int // futures leverage (optional)
}

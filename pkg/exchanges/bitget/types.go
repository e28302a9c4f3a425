package bitget

import "time"

// Candle is one OHLCV bar as returned by the candles endpoint, oldest first.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Ticker is the latest price snapshot for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
	BidPrice  float64
	AskPrice  float64
	Timestamp time.Time
}

// AccountBalance is the USDT-margined futures account snapshot.
type AccountBalance struct {
	MarginCoin string
	Available  float64
	Equity     float64
	Locked     float64
}

// OrderResult is the exchange ack for a placed order.
type OrderResult struct {
	OrderID       string
	ClientOrderID string
}

// apiResponse is the uniform Bitget REST envelope.
type apiResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

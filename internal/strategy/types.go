package strategy

import (
	"time"

	"bitget-trader/pkg/exchanges/bitget"
)

// Trade directions emitted by strategies.
const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
	DirectionClose = "CLOSE"
)

// Signal is one strategy's opinion on a symbol. Confidence runs 0-100.
type Signal struct {
	Symbol     string
	Strategy   string
	Direction  string
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Confidence float64
	Reason     string
	Timestamp  time.Time
	Metadata   map[string]float64
}

// Strategy evaluates a candle window and optionally emits a signal. A nil
// return means no opinion this pass.
type Strategy interface {
	Name() string
	GenerateSignal(symbol string, candles []bitget.Candle) *Signal
}

func closes(candles []bitget.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func volumes(candles []bitget.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

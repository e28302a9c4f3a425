package strategy

import (
	"fmt"
	"time"

	"bitget-trader/internal/indicators"
	"bitget-trader/pkg/exchanges/bitget"
)

// RSIReversal fades exhaustion moves: LONG when RSI drops below the oversold
// threshold, SHORT when it rises above the overbought one.
type RSIReversal struct {
	name       string
	period     int
	oversold   float64
	overbought float64
	stopPct    float64
	takePct    float64
}

// NewRSIReversal builds the strategy with sane defaults for zero parameters.
func NewRSIReversal(name string, period int, oversold, overbought, stopPct, takePct float64) *RSIReversal {
	if period <= 0 {
		period = 14
	}
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	if stopPct <= 0 {
		stopPct = 2
	}
	if takePct <= 0 {
		takePct = 4
	}
	return &RSIReversal{
		name:       name,
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		stopPct:    stopPct,
		takePct:    takePct,
	}
}

func (s *RSIReversal) Name() string { return s.name }

func (s *RSIReversal) GenerateSignal(symbol string, candles []bitget.Candle) *Signal {
	prices := closes(candles)
	if len(prices) < s.period+1 {
		return nil
	}

	rsi := indicators.RSI(prices, s.period)
	price := prices[len(prices)-1]

	switch {
	case rsi < s.oversold:
		// Deeper oversold reads as stronger conviction.
		conf := clampConfidence(60 + (s.oversold-rsi)*2)
		return &Signal{
			Symbol:     symbol,
			Strategy:   s.name,
			Direction:  DirectionLong,
			EntryPrice: price,
			StopLoss:   price * (1 - s.stopPct/100),
			TakeProfit: price * (1 + s.takePct/100),
			Confidence: conf,
			Reason:     fmt.Sprintf("rsi oversold: %.2f < %.2f", rsi, s.oversold),
			Timestamp:  time.Now(),
			Metadata:   map[string]float64{"rsi": rsi},
		}
	case rsi > s.overbought:
		conf := clampConfidence(60 + (rsi-s.overbought)*2)
		return &Signal{
			Symbol:     symbol,
			Strategy:   s.name,
			Direction:  DirectionShort,
			EntryPrice: price,
			StopLoss:   price * (1 + s.stopPct/100),
			TakeProfit: price * (1 - s.takePct/100),
			Confidence: conf,
			Reason:     fmt.Sprintf("rsi overbought: %.2f > %.2f", rsi, s.overbought),
			Timestamp:  time.Now(),
			Metadata:   map[string]float64{"rsi": rsi},
		}
	}
	return nil
}

func clampConfidence(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

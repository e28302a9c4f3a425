package strategy

import (
	"fmt"
	"time"

	"bitget-trader/internal/indicators"
	"bitget-trader/pkg/exchanges/bitget"
)

// EMACross signals on fast/slow EMA crossovers: LONG when the fast average
// crosses above the slow one on the latest bar, SHORT on the opposite cross.
type EMACross struct {
	name    string
	fast    int
	slow    int
	stopPct float64
	takePct float64
}

func NewEMACross(name string, fast, slow int, stopPct, takePct float64) *EMACross {
	if fast <= 0 {
		fast = 9
	}
	if slow <= fast {
		slow = fast * 2
	}
	if stopPct <= 0 {
		stopPct = 2
	}
	if takePct <= 0 {
		takePct = 4
	}
	return &EMACross{name: name, fast: fast, slow: slow, stopPct: stopPct, takePct: takePct}
}

func (s *EMACross) Name() string { return s.name }

func (s *EMACross) GenerateSignal(symbol string, candles []bitget.Candle) *Signal {
	prices := closes(candles)
	// One extra bar so the previous pair is warm too.
	if len(prices) < s.slow+1 {
		return nil
	}

	fast := indicators.EMASeries(prices, s.fast)
	slow := indicators.EMASeries(prices, s.slow)
	last := len(prices) - 1

	fastNow, slowNow := fast[last], slow[last]
	fastPrev, slowPrev := fast[last-1], slow[last-1]
	if fastPrev == 0 || slowPrev == 0 {
		return nil
	}

	price := prices[last]
	// Wider spread right after the cross reads as a stronger trend start.
	spreadPct := (fastNow - slowNow) / slowNow * 100

	if fastPrev <= slowPrev && fastNow > slowNow {
		return &Signal{
			Symbol:     symbol,
			Strategy:   s.name,
			Direction:  DirectionLong,
			EntryPrice: price,
			StopLoss:   price * (1 - s.stopPct/100),
			TakeProfit: price * (1 + s.takePct/100),
			Confidence: clampConfidence(65 + spreadPct*20),
			Reason:     fmt.Sprintf("ema %d crossed above ema %d", s.fast, s.slow),
			Timestamp:  time.Now(),
			Metadata:   map[string]float64{"ema_fast": fastNow, "ema_slow": slowNow},
		}
	}
	if fastPrev >= slowPrev && fastNow < slowNow {
		return &Signal{
			Symbol:     symbol,
			Strategy:   s.name,
			Direction:  DirectionShort,
			EntryPrice: price,
			StopLoss:   price * (1 + s.stopPct/100),
			TakeProfit: price * (1 - s.takePct/100),
			Confidence: clampConfidence(65 - spreadPct*20),
			Reason:     fmt.Sprintf("ema %d crossed below ema %d", s.fast, s.slow),
			Timestamp:  time.Now(),
			Metadata:   map[string]float64{"ema_fast": fastNow, "ema_slow": slowNow},
		}
	}
	return nil
}

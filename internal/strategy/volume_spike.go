package strategy

import (
	"fmt"
	"time"

	"bitget-trader/internal/indicators"
	"bitget-trader/pkg/exchanges/bitget"
)

// VolumeSpike follows conviction moves: when the latest bar's volume exceeds
// its recent average by a multiple, signal in the direction of that bar.
type VolumeSpike struct {
	name       string
	lookback   int
	multiplier float64
	stopPct    float64
	takePct    float64
}

func NewVolumeSpike(name string, lookback int, multiplier, stopPct, takePct float64) *VolumeSpike {
	if lookback <= 0 {
		lookback = 20
	}
	if multiplier <= 1 {
		multiplier = 2
	}
	if stopPct <= 0 {
		stopPct = 2
	}
	if takePct <= 0 {
		takePct = 4
	}
	return &VolumeSpike{name: name, lookback: lookback, multiplier: multiplier, stopPct: stopPct, takePct: takePct}
}

func (s *VolumeSpike) Name() string { return s.name }

func (s *VolumeSpike) GenerateSignal(symbol string, candles []bitget.Candle) *Signal {
	if len(candles) < s.lookback+1 {
		return nil
	}

	last := candles[len(candles)-1]
	// Average excludes the bar being judged.
	avg := indicators.AvgVolume(volumes(candles[:len(candles)-1]), s.lookback)
	if avg <= 0 || last.Volume < avg*s.multiplier {
		return nil
	}
	if last.Close == last.Open {
		return nil
	}

	ratio := last.Volume / avg
	conf := clampConfidence(55 + ratio*10)
	sig := &Signal{
		Symbol:     symbol,
		Strategy:   s.name,
		EntryPrice: last.Close,
		Confidence: conf,
		Reason:     fmt.Sprintf("volume %.1fx above %d-bar average", ratio, s.lookback),
		Timestamp:  time.Now(),
		Metadata:   map[string]float64{"volume_ratio": ratio},
	}

	if last.Close > last.Open {
		sig.Direction = DirectionLong
		sig.StopLoss = last.Close * (1 - s.stopPct/100)
		sig.TakeProfit = last.Close * (1 + s.takePct/100)
	} else {
		sig.Direction = DirectionShort
		sig.StopLoss = last.Close * (1 + s.stopPct/100)
		sig.TakeProfit = last.Close * (1 - s.takePct/100)
	}
	return sig
}

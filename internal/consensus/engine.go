package consensus

import (
	"fmt"
	"log"
	"time"

	"bitget-trader/internal/strategy"
)

// Decision actions.
const (
	ActionExecute = "EXECUTE"
	ActionClose   = "CLOSE"
	ActionHold    = "HOLD"
)

// Decision is the aggregated outcome over one symbol's signals.
type Decision struct {
	Symbol        string
	Action        string
	Direction     string
	Confidence    float64
	AvgConfidence float64
	Strategies    []string
	Scores        map[string]float64
	EntryPrice    float64
	StopLoss      float64
	TakeProfit    float64
	Reason        string
	Timestamp     time.Time
}

// Engine turns individual strategy signals into one decision per symbol by
// requiring several strategies to agree on direction.
type Engine struct {
	minAgreement  int
	minConfidence float64
}

// NewEngine builds a consensus engine. minAgreement below 1 is raised to 2,
// the smallest count that still means "agreement". minConfidence at or below
// zero defaults to 60.
func NewEngine(minAgreement int, minConfidence float64) *Engine {
	if minAgreement < 1 {
		minAgreement = 2
	}
	if minConfidence <= 0 {
		minConfidence = 60
	}
	return &Engine{minAgreement: minAgreement, minConfidence: minConfidence}
}

// Decide aggregates signals for one symbol. It returns nil when no direction
// gathers enough agreeing strategies. Signals must arrive in strategy
// registration order; that order breaks confidence ties for the best signal.
// A CLOSE from any strategy short-circuits: exits do not wait for consensus.
func (e *Engine) Decide(symbol string, signals []strategy.Signal) *Decision {
	if len(signals) == 0 {
		return nil
	}

	for _, sig := range signals {
		if sig.Direction == strategy.DirectionClose {
			return &Decision{
				Symbol:     symbol,
				Action:     ActionClose,
				Direction:  strategy.DirectionClose,
				Confidence: sig.Confidence,
				Strategies: []string{sig.Strategy},
				Reason:     fmt.Sprintf("%s requested close: %s", sig.Strategy, sig.Reason),
				Timestamp:  time.Now(),
			}
		}
	}

	longs := filterDirection(signals, strategy.DirectionLong)
	shorts := filterDirection(signals, strategy.DirectionShort)

	// LONG is evaluated first; with a low enough threshold both sides can
	// qualify on conflicting signals and longs take precedence.
	if d := e.qualify(symbol, longs); d != nil {
		return d
	}
	if d := e.qualify(symbol, shorts); d != nil {
		return d
	}
	log.Printf("consensus: %s no qualifying direction (long=%d short=%d need=%d)",
		symbol, len(longs), len(shorts), e.minAgreement)
	return nil
}

// qualify checks one direction group against the agreement count and the
// average confidence floor, returning the built decision or nil.
func (e *Engine) qualify(symbol string, agreeing []strategy.Signal) *Decision {
	if len(agreeing) < e.minAgreement {
		return nil
	}

	best := agreeing[0]
	sum := 0.0
	names := make([]string, len(agreeing))
	scores := make(map[string]float64, len(agreeing))
	detail := ""
	for i, sig := range agreeing {
		sum += sig.Confidence
		names[i] = sig.Strategy
		scores[sig.Strategy] = sig.Confidence
		if i > 0 {
			detail += ", "
		}
		detail += fmt.Sprintf("%s=%.0f", sig.Strategy, sig.Confidence)
		// Strictly greater keeps the earliest-registered winner on ties.
		if sig.Confidence > best.Confidence {
			best = sig
		}
	}

	avg := sum / float64(len(agreeing))
	if avg < e.minConfidence {
		log.Printf("consensus: %s %s avg confidence %.1f below %.1f",
			symbol, best.Direction, avg, e.minConfidence)
		return nil
	}

	// The decision's confidence is the group average; it is what the risk
	// layer gates and de-escalates on. The best signal only contributes its
	// price levels.
	d := &Decision{
		Symbol:        symbol,
		Action:        ActionExecute,
		Direction:     best.Direction,
		Confidence:    avg,
		AvgConfidence: avg,
		Strategies:    names,
		Scores:        scores,
		EntryPrice:    best.EntryPrice,
		StopLoss:      best.StopLoss,
		TakeProfit:    best.TakeProfit,
		Reason:        fmt.Sprintf("%d strategies agree %s (%s)", len(agreeing), best.Direction, detail),
		Timestamp:     time.Now(),
	}
	log.Printf("consensus: %s %s %s avg=%.1f strategies=%v",
		symbol, d.Action, d.Direction, d.AvgConfidence, d.Strategies)
	return d
}

func filterDirection(signals []strategy.Signal, direction string) []strategy.Signal {
	var out []strategy.Signal
	for _, sig := range signals {
		if sig.Direction == direction {
			out = append(out, sig)
		}
	}
	return out
}

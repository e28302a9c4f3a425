package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/events"
	"bitget-trader/internal/risk"
	"bitget-trader/internal/strategy"
	"bitget-trader/internal/webhook"
	"bitget-trader/pkg/db"
	"bitget-trader/pkg/exchanges/bitget"
)

// MarketData is the slice of the REST client the decision loop needs.
type MarketData interface {
	GetCandles(ctx context.Context, symbol, granularity string, limit int) ([]bitget.Candle, error)
	GetAccountBalance(ctx context.Context) (*bitget.AccountBalance, error)
}

// Executor places and flattens positions.
type Executor interface {
	Execute(ctx context.Context, d *consensus.Decision, plan *risk.PositionPlan) (*db.Position, error)
	Close(ctx context.Context, symbol string, closePrice float64) error
}

// DecisionStore persists decisions and reports open position counts.
type DecisionStore interface {
	SaveDecision(ctx context.Context, d db.Decision) error
	MarkDecisionExecuted(ctx context.Context, id string) error
	CountOpenPositions(ctx context.Context) (int, error)
}

// Config drives the pacing of the decision loop.
type Config struct {
	Symbols     []string
	Timeframe   string
	CandleLimit int
	Interval    time.Duration
	// SymbolDelay spaces REST calls out inside one pass so a pass over many
	// symbols does not burst through the rate limit.
	SymbolDelay time.Duration
}

// Orchestrator runs the periodic evaluate-decide-execute loop.
type Orchestrator struct {
	cfg        Config
	market     MarketData
	strategies *strategy.Manager
	consensus  *consensus.Engine
	risk       *risk.Manager
	executor   Executor
	store      DecisionStore
	bus        *events.Bus
	webhook    *webhook.Client
}

func New(cfg Config, market MarketData, strategies *strategy.Manager, cons *consensus.Engine,
	riskMgr *risk.Manager, executor Executor, store DecisionStore, bus *events.Bus, hook *webhook.Client) *Orchestrator {
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		market:     market,
		strategies: strategies,
		consensus:  cons,
		risk:       riskMgr,
		executor:   executor,
		store:      store,
		bus:        bus,
		webhook:    hook,
	}
}

// Run blocks until ctx is cancelled, evaluating all symbols once per interval.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Printf("orchestrator: loop every %s over %v", o.cfg.Interval, o.cfg.Symbols)
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.Pass(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("orchestrator: stopped")
			return
		case <-ticker.C:
			o.Pass(ctx)
		}
	}
}

// Pass evaluates every symbol sequentially. One symbol failing never stops
// the rest of the pass.
func (o *Orchestrator) Pass(ctx context.Context) {
	for i, symbol := range o.cfg.Symbols {
		if i > 0 && o.cfg.SymbolDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.cfg.SymbolDelay):
			}
		}
		if err := o.evaluateSymbol(ctx, symbol); err != nil {
			log.Printf("orchestrator: %s pass failed: %v", symbol, err)
		}
	}
}

func (o *Orchestrator) evaluateSymbol(ctx context.Context, symbol string) error {
	candles, err := o.market.GetCandles(ctx, symbol, o.cfg.Timeframe, o.cfg.CandleLimit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	signals := o.strategies.Evaluate(symbol, candles)
	for _, sig := range signals {
		o.publish(events.EventStrategySignal, sig)
	}

	decision := o.consensus.Decide(symbol, signals)
	if decision == nil {
		return nil
	}
	o.publish(events.EventDecision, *decision)

	record := decisionRecord(decision)
	if err := o.store.SaveDecision(ctx, record); err != nil {
		log.Printf("orchestrator: decision not persisted: %v", err)
	}

	switch decision.Action {
	case consensus.ActionClose:
		lastClose := candles[len(candles)-1].Close
		if err := o.executor.Close(ctx, symbol, lastClose); err != nil {
			return err
		}
		return o.markExecuted(ctx, record.ID, decision)
	case consensus.ActionExecute:
		return o.executeDecision(ctx, record.ID, decision)
	}
	return nil
}

func (o *Orchestrator) executeDecision(ctx context.Context, recordID string, decision *consensus.Decision) error {
	open, err := o.store.CountOpenPositions(ctx)
	if err != nil {
		return err
	}
	if err := o.risk.Validate(decision, open); err != nil {
		log.Printf("orchestrator: %s rejected by risk: %v", decision.Symbol, err)
		o.publish(events.EventRiskAlert, events.RiskAlert{
			Symbol: decision.Symbol,
			Reason: err.Error(),
			Time:   time.Now(),
		})
		return nil
	}

	balance, err := o.market.GetAccountBalance(ctx)
	if err != nil {
		return err
	}
	plan := o.risk.CalculatePositionSize(balance.Available, decision)
	if plan == nil {
		log.Printf("orchestrator: %s unsizeable (balance %.2f)", decision.Symbol, balance.Available)
		return nil
	}

	if _, err := o.executor.Execute(ctx, decision, plan); err != nil {
		return err
	}
	return o.markExecuted(ctx, recordID, decision)
}

func (o *Orchestrator) markExecuted(ctx context.Context, recordID string, decision *consensus.Decision) error {
	if err := o.store.MarkDecisionExecuted(ctx, recordID); err != nil {
		log.Printf("orchestrator: executed flag not persisted: %v", err)
	}
	if o.webhook != nil && o.webhook.Enabled() {
		if err := o.webhook.Notify(ctx, "decision.executed", decision); err != nil {
			log.Printf("orchestrator: webhook: %v", err)
		}
	}
	return nil
}

func decisionRecord(d *consensus.Decision) db.Decision {
	// Persist the per-strategy scores when present; CLOSE decisions only
	// carry the requesting strategy's name.
	var strategies []byte
	if len(d.Scores) > 0 {
		strategies, _ = json.Marshal(d.Scores)
	} else {
		strategies, _ = json.Marshal(d.Strategies)
	}
	return db.Decision{
		ID:            uuid.NewString(),
		Symbol:        d.Symbol,
		Action:        d.Action,
		Direction:     d.Direction,
		Confidence:    d.Confidence,
		AvgConfidence: d.AvgConfidence,
		Strategies:    string(strategies),
		EntryPrice:    d.EntryPrice,
		StopLoss:      d.StopLoss,
		TakeProfit:    d.TakeProfit,
		Reason:        d.Reason,
	}
}

func (o *Orchestrator) publish(event events.Event, payload any) {
	if o.bus != nil {
		o.bus.Publish(event, payload)
	}
}

package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/risk"
	"bitget-trader/internal/strategy"
	"bitget-trader/pkg/db"
	"bitget-trader/pkg/exchanges/bitget"
)

type fakeMarket struct {
	candles   map[string][]bitget.Candle
	balance   float64
	candleErr error
}

func (f *fakeMarket) GetCandles(_ context.Context, symbol, _ string, _ int) ([]bitget.Candle, error) {
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	return f.candles[symbol], nil
}

func (f *fakeMarket) GetAccountBalance(context.Context) (*bitget.AccountBalance, error) {
	return &bitget.AccountBalance{MarginCoin: "USDT", Available: f.balance}, nil
}

type fakeExecutor struct {
	executed []*consensus.Decision
	plans    []*risk.PositionPlan
	closed   []string
}

func (f *fakeExecutor) Execute(_ context.Context, d *consensus.Decision, plan *risk.PositionPlan) (*db.Position, error) {
	f.executed = append(f.executed, d)
	f.plans = append(f.plans, plan)
	return &db.Position{ID: "pos-1", Symbol: d.Symbol}, nil
}

func (f *fakeExecutor) Close(_ context.Context, symbol string, _ float64) error {
	f.closed = append(f.closed, symbol)
	return nil
}

type fakeDecisionStore struct {
	saved    []db.Decision
	executed []string
	open     int
}

func (f *fakeDecisionStore) SaveDecision(_ context.Context, d db.Decision) error {
	f.saved = append(f.saved, d)
	return nil
}

func (f *fakeDecisionStore) MarkDecisionExecuted(_ context.Context, id string) error {
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeDecisionStore) CountOpenPositions(context.Context) (int, error) {
	return f.open, nil
}

type stubStrategy struct {
	name string
	sig  *strategy.Signal
}

func (s stubStrategy) Name() string { return s.name }
func (s stubStrategy) GenerateSignal(symbol string, _ []bitget.Candle) *strategy.Signal {
	if s.sig == nil {
		return nil
	}
	out := *s.sig
	out.Symbol = symbol
	out.Strategy = s.name
	return &out
}

func agreeingManager(direction string) *strategy.Manager {
	m := strategy.NewManager()
	m.Register(stubStrategy{name: "alpha", sig: &strategy.Signal{
		Direction: direction, Confidence: 85, EntryPrice: 50000, StopLoss: 49000, TakeProfit: 52000,
	}})
	m.Register(stubStrategy{name: "beta", sig: &strategy.Signal{
		Direction: direction, Confidence: 90, EntryPrice: 50000, StopLoss: 49000, TakeProfit: 52000,
	}})
	return m
}

func testCandles() map[string][]bitget.Candle {
	return map[string][]bitget.Candle{
		"BTCUSDT": {{Close: 50000, Volume: 100}},
	}
}

func newTestOrchestrator(market MarketData, mgr *strategy.Manager, exec Executor, store DecisionStore) *Orchestrator {
	cfg := Config{Symbols: []string{"BTCUSDT"}, Timeframe: "1m", CandleLimit: 10, Interval: time.Minute}
	riskMgr := risk.NewManager(risk.Config{MinConfidence: 60, MaxOpenPositions: 3, RiskPerTradePct: 5, Leverage: 10})
	return New(cfg, market, mgr, consensus.NewEngine(2, 60), riskMgr, exec, store, nil, nil)
}

func TestPassExecutesConsensusDecision(t *testing.T) {
	market := &fakeMarket{candles: testCandles(), balance: 10000}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{}
	o := newTestOrchestrator(market, agreeingManager(strategy.DirectionLong), exec, store)

	o.Pass(context.Background())

	if len(exec.executed) != 1 {
		t.Fatalf("executed %d decisions, want 1", len(exec.executed))
	}
	if exec.executed[0].Direction != strategy.DirectionLong {
		t.Fatalf("direction = %s", exec.executed[0].Direction)
	}
	// Best confidence 90 keeps full leverage.
	if exec.plans[0].Leverage != 10 {
		t.Fatalf("leverage = %d, want 10", exec.plans[0].Leverage)
	}
	if len(store.saved) != 1 || len(store.executed) != 1 {
		t.Fatalf("persistence: saved=%d executed=%d", len(store.saved), len(store.executed))
	}
	if store.saved[0].ID != store.executed[0] {
		t.Fatal("executed flag set on a different decision record")
	}
}

func TestPassSkipsWithoutConsensus(t *testing.T) {
	m := strategy.NewManager()
	m.Register(stubStrategy{name: "alpha", sig: &strategy.Signal{
		Direction: strategy.DirectionLong, Confidence: 95, EntryPrice: 50000,
	}})
	market := &fakeMarket{candles: testCandles(), balance: 10000}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{}
	o := newTestOrchestrator(market, m, exec, store)

	o.Pass(context.Background())

	if len(exec.executed) != 0 {
		t.Fatalf("executed without consensus: %+v", exec.executed)
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved a decision without consensus: %+v", store.saved)
	}
}

func TestPassRiskRejectionStopsExecution(t *testing.T) {
	market := &fakeMarket{candles: testCandles(), balance: 10000}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{open: 3} // at the position limit
	o := newTestOrchestrator(market, agreeingManager(strategy.DirectionLong), exec, store)

	o.Pass(context.Background())

	if len(exec.executed) != 0 {
		t.Fatal("executed despite risk rejection")
	}
	// The decision itself is still recorded for the audit trail.
	if len(store.saved) != 1 {
		t.Fatalf("saved = %d, want 1", len(store.saved))
	}
	if len(store.executed) != 0 {
		t.Fatal("rejected decision marked executed")
	}
}

func TestPassZeroBalanceSkipsQuietly(t *testing.T) {
	market := &fakeMarket{candles: testCandles(), balance: 0}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{}
	o := newTestOrchestrator(market, agreeingManager(strategy.DirectionLong), exec, store)

	o.Pass(context.Background())

	if len(exec.executed) != 0 {
		t.Fatal("executed with zero balance")
	}
}

func TestPassCloseDecision(t *testing.T) {
	m := strategy.NewManager()
	m.Register(stubStrategy{name: "exit", sig: &strategy.Signal{
		Direction: strategy.DirectionClose, Confidence: 100,
	}})
	market := &fakeMarket{candles: testCandles(), balance: 10000}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{}
	o := newTestOrchestrator(market, m, exec, store)

	o.Pass(context.Background())

	if len(exec.closed) != 1 || exec.closed[0] != "BTCUSDT" {
		t.Fatalf("closed = %v", exec.closed)
	}
	if len(exec.executed) != 0 {
		t.Fatal("close decision should not open a position")
	}
}

func TestPassSurvivesMarketErrors(t *testing.T) {
	market := &fakeMarket{candleErr: errors.New("rate limited")}
	exec := &fakeExecutor{}
	store := &fakeDecisionStore{}
	o := newTestOrchestrator(market, agreeingManager(strategy.DirectionLong), exec, store)

	// Must not panic or execute anything.
	o.Pass(context.Background())
	if len(exec.executed) != 0 {
		t.Fatal("executed despite market error")
	}
}

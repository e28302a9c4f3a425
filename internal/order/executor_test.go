package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/risk"
	"bitget-trader/internal/strategy"
	"bitget-trader/pkg/db"
	"bitget-trader/pkg/exchanges/bitget"
	"bitget-trader/pkg/exchanges/common"
)

type tpslCall struct {
	planType string
	holdSide string
	trigger  float64
}

type fakeExchange struct {
	leverage   int
	marginMode string
	orders     []common.OrderRequest
	tpsls      []tpslCall
	orderErr   error
}

func (f *fakeExchange) SetLeverage(_ context.Context, _ string, leverage int) error {
	f.leverage = leverage
	return nil
}

func (f *fakeExchange) SetMarginMode(_ context.Context, _, mode string) error {
	f.marginMode = mode
	return nil
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req common.OrderRequest) (*bitget.OrderResult, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, req)
	return &bitget.OrderResult{OrderID: "ord-123", ClientOrderID: req.ClientID}, nil
}

func (f *fakeExchange) PlaceTpsl(_ context.Context, _, planType, holdSide string, trigger, _ float64) error {
	f.tpsls = append(f.tpsls, tpslCall{planType: planType, holdSide: holdSide, trigger: trigger})
	return nil
}

type fakeStore struct {
	open    map[string]db.Position
	closed  []string
	results []float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{open: make(map[string]db.Position)}
}

func (f *fakeStore) SavePosition(_ context.Context, p db.Position) error {
	f.open[p.Symbol] = p
	return nil
}

func (f *fakeStore) ClosePosition(_ context.Context, id string, _, _ float64) error {
	for symbol, p := range f.open {
		if p.ID == id {
			delete(f.open, symbol)
			f.closed = append(f.closed, id)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) GetOpenPositionBySymbol(_ context.Context, symbol string) (*db.Position, error) {
	if p, ok := f.open[symbol]; ok {
		return &p, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) RecordTradeResult(_ context.Context, _ time.Time, pnl float64) error {
	f.results = append(f.results, pnl)
	return nil
}

func testDecision() *consensus.Decision {
	return &consensus.Decision{
		Symbol:     "BTCUSDT",
		Action:     consensus.ActionExecute,
		Direction:  strategy.DirectionLong,
		Confidence: 90,
		Strategies: []string{"rsi_reversal", "ema_cross"},
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}
}

func TestExecuteOpensPosition(t *testing.T) {
	exchange := &fakeExchange{}
	store := newFakeStore()
	e := NewExecutor(exchange, store, nil, false)

	plan := &risk.PositionPlan{Margin: 500, Leverage: 10, Size: 0.1}
	position, err := e.Execute(context.Background(), testDecision(), plan)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if exchange.marginMode != "crossed" {
		t.Fatalf("margin mode = %s, want crossed", exchange.marginMode)
	}
	if exchange.leverage != 10 {
		t.Fatalf("leverage = %d, want 10", exchange.leverage)
	}
	if len(exchange.orders) != 1 || exchange.orders[0].Side != common.SideBuy {
		t.Fatalf("unexpected orders: %+v", exchange.orders)
	}
	if len(exchange.tpsls) != 2 {
		t.Fatalf("expected stop loss and take profit, got %+v", exchange.tpsls)
	}
	if exchange.tpsls[0].planType != "loss_plan" || exchange.tpsls[0].holdSide != "long" {
		t.Fatalf("unexpected stop order: %+v", exchange.tpsls[0])
	}
	if exchange.tpsls[1].planType != "profit_plan" || exchange.tpsls[1].trigger != 52000 {
		t.Fatalf("unexpected take profit: %+v", exchange.tpsls[1])
	}

	if position.OrderID != "ord-123" {
		t.Fatalf("order id = %s", position.OrderID)
	}
	if !strings.Contains(position.Strategy, "rsi_reversal") {
		t.Fatalf("strategy field = %s", position.Strategy)
	}
	if _, err := store.GetOpenPositionBySymbol(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("position not persisted: %v", err)
	}
}

func TestExecuteRefusesStacking(t *testing.T) {
	exchange := &fakeExchange{}
	store := newFakeStore()
	e := NewExecutor(exchange, store, nil, false)
	plan := &risk.PositionPlan{Margin: 500, Leverage: 10, Size: 0.1}

	if _, err := e.Execute(context.Background(), testDecision(), plan); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if _, err := e.Execute(context.Background(), testDecision(), plan); err == nil {
		t.Fatal("second Execute on same symbol should fail")
	}
	if len(exchange.orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(exchange.orders))
	}
}

func TestExecuteOrderFailureDoesNotPersist(t *testing.T) {
	exchange := &fakeExchange{orderErr: errors.New("insufficient margin")}
	store := newFakeStore()
	e := NewExecutor(exchange, store, nil, false)

	_, err := e.Execute(context.Background(), testDecision(), &risk.PositionPlan{Margin: 500, Leverage: 10, Size: 0.1})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.open) != 0 {
		t.Fatalf("failed order persisted a position: %+v", store.open)
	}
}

func TestExecuteDryRunSkipsExchange(t *testing.T) {
	exchange := &fakeExchange{}
	store := newFakeStore()
	e := NewExecutor(exchange, store, nil, true)

	position, err := e.Execute(context.Background(), testDecision(), &risk.PositionPlan{Margin: 500, Leverage: 10, Size: 0.1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(exchange.orders) != 0 || len(exchange.tpsls) != 0 {
		t.Fatal("dry run should not touch the exchange")
	}
	if !strings.HasPrefix(position.OrderID, "dry-") {
		t.Fatalf("order id = %s", position.OrderID)
	}
}

func TestCloseRealizesPnL(t *testing.T) {
	exchange := &fakeExchange{}
	store := newFakeStore()
	e := NewExecutor(exchange, store, nil, false)

	plan := &risk.PositionPlan{Margin: 500, Leverage: 10, Size: 0.1}
	if _, err := e.Execute(context.Background(), testDecision(), plan); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := e.Close(context.Background(), "BTCUSDT", 51000); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(exchange.orders) != 2 {
		t.Fatalf("expected entry and exit orders, got %d", len(exchange.orders))
	}
	exit := exchange.orders[1]
	if exit.Side != common.SideSell || !exit.ReduceOnly {
		t.Fatalf("unexpected exit order: %+v", exit)
	}
	if len(store.results) != 1 || store.results[0] != 100 {
		t.Fatalf("recorded pnl = %v, want [100]", store.results)
	}

	if err := e.Close(context.Background(), "BTCUSDT", 51000); err == nil {
		t.Fatal("closing twice should fail")
	}
}

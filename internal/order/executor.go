package order

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/events"
	"bitget-trader/internal/risk"
	"bitget-trader/internal/strategy"
	"bitget-trader/pkg/db"
	"bitget-trader/pkg/exchanges/bitget"
	"bitget-trader/pkg/exchanges/common"
)

// Exchange is the slice of the REST client the executor needs.
type Exchange interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol, mode string) error
	PlaceOrder(ctx context.Context, req common.OrderRequest) (*bitget.OrderResult, error)
	PlaceTpsl(ctx context.Context, symbol, planType, holdSide string, triggerPrice, size float64) error
}

// Store is the persistence surface the executor needs.
type Store interface {
	SavePosition(ctx context.Context, p db.Position) error
	ClosePosition(ctx context.Context, id string, closePrice, pnl float64) error
	GetOpenPositionBySymbol(ctx context.Context, symbol string) (*db.Position, error)
	RecordTradeResult(ctx context.Context, day time.Time, pnl float64) error
}

// Executor turns a validated decision and a sized plan into exchange orders
// and records the resulting position.
type Executor struct {
	exchange Exchange
	store    Store
	bus      *events.Bus
	dryRun   bool
}

func NewExecutor(exchange Exchange, store Store, bus *events.Bus, dryRun bool) *Executor {
	return &Executor{exchange: exchange, store: store, bus: bus, dryRun: dryRun}
}

// Execute opens a position for the decision. It refuses to stack: a symbol
// with an open position is skipped until that position closes.
func (e *Executor) Execute(ctx context.Context, d *consensus.Decision, plan *risk.PositionPlan) (*db.Position, error) {
	if d == nil || plan == nil {
		return nil, fmt.Errorf("nothing to execute")
	}

	if existing, err := e.store.GetOpenPositionBySymbol(ctx, d.Symbol); err == nil && existing != nil {
		return nil, fmt.Errorf("position already open on %s (%s)", d.Symbol, existing.ID)
	} else if err != nil && err != db.ErrNotFound {
		return nil, fmt.Errorf("check open position: %w", err)
	}

	position := db.Position{
		ID:         uuid.NewString(),
		Symbol:     d.Symbol,
		Strategy:   strings.Join(d.Strategies, ","),
		Direction:  d.Direction,
		EntryPrice: d.EntryPrice,
		Size:       plan.Size,
		Leverage:   plan.Leverage,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
	}

	if e.dryRun {
		log.Printf("executor: dry run %s %s size=%.6f lev=%dx", d.Direction, d.Symbol, plan.Size, plan.Leverage)
		position.OrderID = "dry-" + position.ID[:8]
	} else {
		orderID, err := e.placeLive(ctx, d, plan)
		if err != nil {
			return nil, err
		}
		position.OrderID = orderID
	}

	if err := e.store.SavePosition(ctx, position); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	e.publish(events.EventPositionOpened, position)
	log.Printf("executor: opened %s %s entry=%.2f size=%.6f lev=%dx order=%s",
		d.Direction, d.Symbol, d.EntryPrice, plan.Size, plan.Leverage, position.OrderID)
	return &position, nil
}

func (e *Executor) placeLive(ctx context.Context, d *consensus.Decision, plan *risk.PositionPlan) (string, error) {
	if err := e.exchange.SetMarginMode(ctx, d.Symbol, string(common.MarginCrossed)); err != nil {
		return "", fmt.Errorf("set margin mode: %w", err)
	}
	if err := e.exchange.SetLeverage(ctx, d.Symbol, plan.Leverage); err != nil {
		return "", fmt.Errorf("set leverage: %w", err)
	}

	side := common.SideBuy
	holdSide := "long"
	if d.Direction == strategy.DirectionShort {
		side = common.SideSell
		holdSide = "short"
	}

	req := common.OrderRequest{
		Symbol:   d.Symbol,
		Side:     side,
		Type:     common.OrderTypeMarket,
		Qty:      plan.Size,
		ClientID: "trader-" + uuid.NewString(),
	}
	e.publish(events.EventOrderSubmitted, req)

	result, err := e.exchange.PlaceOrder(ctx, req)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}

	// Protective orders after the entry; a failed stop is logged loudly but
	// does not roll back a filled entry.
	if d.StopLoss > 0 {
		if err := e.exchange.PlaceTpsl(ctx, d.Symbol, "loss_plan", holdSide, d.StopLoss, plan.Size); err != nil {
			log.Printf("executor: WARN stop loss not placed on %s: %v", d.Symbol, err)
		}
	}
	if d.TakeProfit > 0 {
		if err := e.exchange.PlaceTpsl(ctx, d.Symbol, "profit_plan", holdSide, d.TakeProfit, plan.Size); err != nil {
			log.Printf("executor: WARN take profit not placed on %s: %v", d.Symbol, err)
		}
	}
	return result.OrderID, nil
}

// Close flattens the open position on symbol at closePrice with a reduce-only
// market order, then records realized pnl.
func (e *Executor) Close(ctx context.Context, symbol string, closePrice float64) error {
	position, err := e.store.GetOpenPositionBySymbol(ctx, symbol)
	if err == db.ErrNotFound {
		return fmt.Errorf("no open position on %s", symbol)
	}
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}

	if !e.dryRun {
		side := common.SideSell
		if position.Direction == strategy.DirectionShort {
			side = common.SideBuy
		}
		req := common.OrderRequest{
			Symbol:     symbol,
			Side:       side,
			Type:       common.OrderTypeMarket,
			Qty:        position.Size,
			ClientID:   "close-" + uuid.NewString(),
			ReduceOnly: true,
		}
		if _, err := e.exchange.PlaceOrder(ctx, req); err != nil {
			return fmt.Errorf("close order: %w", err)
		}
	}

	pnl := realizedPnL(position, closePrice)
	if err := e.store.ClosePosition(ctx, position.ID, closePrice, pnl); err != nil {
		return fmt.Errorf("persist close: %w", err)
	}
	if err := e.store.RecordTradeResult(ctx, time.Now(), pnl); err != nil {
		log.Printf("executor: WARN trade result not recorded: %v", err)
	}

	position.Status = db.PositionClosed
	position.ClosePrice = closePrice
	position.PnL = pnl
	e.publish(events.EventPositionClosed, *position)
	log.Printf("executor: closed %s %s at %.2f pnl=%.2f", position.Direction, symbol, closePrice, pnl)
	return nil
}

func realizedPnL(p *db.Position, closePrice float64) float64 {
	diff := closePrice - p.EntryPrice
	if p.Direction == strategy.DirectionShort {
		diff = -diff
	}
	return diff * p.Size
}

func (e *Executor) publish(event events.Event, payload any) {
	if e.bus != nil {
		e.bus.Publish(event, payload)
	}
}

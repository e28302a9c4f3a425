package market

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"bitget-trader/internal/events"
	"bitget-trader/internal/indicators"
	"bitget-trader/pkg/exchanges/bitget/ws"
)

const tickerChannel = "ticker"

// Watcher subscribes to ticker streams, keeps the latest price per symbol and
// publishes ticks onto the event bus.
type Watcher struct {
	client     *ws.Client
	bus        *events.Bus
	indicators *indicators.Engine
	instType   string
	symbols    []string

	mu     sync.RWMutex
	prices map[string]events.PriceTick
}

// NewWatcher builds a watcher over the given stream client. indicators may be
// nil when no live indicator cache is wanted.
func NewWatcher(client *ws.Client, bus *events.Bus, ind *indicators.Engine, instType string, symbols []string) *Watcher {
	return &Watcher{
		client:     client,
		bus:        bus,
		indicators: ind,
		instType:   instType,
		symbols:    symbols,
		prices:     make(map[string]events.PriceTick),
	}
}

// Start registers the ticker callbacks and subscribes every symbol. The
// exchange forgets subscriptions when a socket drops, so Resubscribe must be
// wired to the stream client's reconnect hook.
func (w *Watcher) Start(ctx context.Context) error {
	for _, symbol := range w.symbols {
		key := ws.SubscriptionKey{Channel: tickerChannel, InstID: symbol}
		w.client.Registry().Add(key, w.handleTicker)
	}
	return w.subscribeAll(ctx)
}

// Resubscribe re-issues the subscribe frames after a reconnect. Registered
// callbacks survive the drop; only the wire subscriptions need replaying.
func (w *Watcher) Resubscribe(ctx context.Context) {
	if err := w.subscribeAll(ctx); err != nil {
		log.Printf("market: resubscribe failed: %v", err)
	}
}

func (w *Watcher) subscribeAll(ctx context.Context) error {
	for _, symbol := range w.symbols {
		if err := w.client.Subscribe(ctx, tickerChannel, w.instType, symbol, false); err != nil {
			return err
		}
		log.Printf("market: watching %s", symbol)
	}
	return nil
}

// LastPrice returns the most recent price for symbol, or false when no tick
// has arrived yet.
func (w *Watcher) LastPrice(symbol string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	tick, ok := w.prices[symbol]
	return tick.Price, ok
}

// Snapshot returns a copy of all latest ticks.
func (w *Watcher) Snapshot() map[string]events.PriceTick {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]events.PriceTick, len(w.prices))
	for k, v := range w.prices {
		out[k] = v
	}
	return out
}

// tickerPayload is one element of a ticker push's data array.
type tickerPayload struct {
	InstID string `json:"instId"`
	LastPr string `json:"lastPr"`
	BidPr  string `json:"bidPr"`
	AskPr  string `json:"askPr"`
	Ts     string `json:"ts"`
}

func (w *Watcher) handleTicker(msg ws.PushMessage) {
	for _, raw := range msg.Data {
		var payload tickerPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			log.Printf("market: drop bad ticker payload: %v", err)
			continue
		}
		symbol := payload.InstID
		if symbol == "" {
			symbol = msg.Arg.InstID
		}
		price, err := strconv.ParseFloat(payload.LastPr, 64)
		if err != nil || price <= 0 {
			continue
		}

		tick := events.PriceTick{
			Symbol:    symbol,
			Price:     price,
			Bid:       parseOptional(payload.BidPr),
			Ask:       parseOptional(payload.AskPr),
			Timestamp: parseTs(payload.Ts),
		}

		w.mu.Lock()
		w.prices[symbol] = tick
		w.mu.Unlock()

		if w.indicators != nil {
			w.indicators.Update(symbol, price)
		}
		if w.bus != nil {
			w.bus.Publish(events.EventPriceTick, tick)
		}
	}
}

func parseOptional(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseTs(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

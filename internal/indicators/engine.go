package indicators

import "sync"

// Engine maintains per-symbol price windows over live ticks and keeps a few
// core indicators warm for the status API.
type Engine struct {
	mu      sync.Mutex
	prices  map[string][]float64
	window  int
	shortMA int
	longMA  int
	rsi     int
}

// NewEngine builds an indicator engine with the given windows.
func NewEngine(shortMA, longMA, rsiPeriod, window int) *Engine {
	if window < longMA {
		window = longMA
	}
	return &Engine{
		prices:  make(map[string][]float64),
		window:  window,
		shortMA: shortMA,
		longMA:  longMA,
		rsi:     rsiPeriod,
	}
}

// Update ingests a new price and returns the latest computed values.
func (e *Engine) Update(symbol string, price float64) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	arr := append(e.prices[symbol], price)
	if len(arr) > e.window {
		arr = arr[len(arr)-e.window:]
	}
	e.prices[symbol] = arr

	return map[string]float64{
		"ema_short": EMA(arr, e.shortMA),
		"ema_long":  EMA(arr, e.longMA),
		"rsi":       RSI(arr, e.rsi),
	}
}

// Snapshot returns the latest indicator values for symbol without mutating
// the window.
func (e *Engine) Snapshot(symbol string) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	arr := e.prices[symbol]
	return map[string]float64{
		"ema_short": EMA(arr, e.shortMA),
		"ema_long":  EMA(arr, e.longMA),
		"rsi":       RSI(arr, e.rsi),
	}
}

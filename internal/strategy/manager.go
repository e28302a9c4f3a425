package strategy

import (
	"log"
	"sync"

	"bitget-trader/pkg/exchanges/bitget"
)

// Manager holds the registered strategies in registration order. Order
// matters downstream: the consensus engine breaks confidence ties by it.
type Manager struct {
	mu         sync.RWMutex
	strategies []Strategy
}

func NewManager() *Manager {
	return &Manager{}
}

// Register appends a strategy. Later registrations rank lower on ties.
func (m *Manager) Register(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, s)
	log.Printf("strategy: registered %s", s.Name())
}

// Names returns the registered strategy names in order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.strategies))
	for i, s := range m.strategies {
		names[i] = s.Name()
	}
	return names
}

// Evaluate runs every strategy over the candle window and collects the
// non-nil signals in registration order. A panicking strategy is logged and
// skipped so one bad strategy cannot take down the decision pass.
func (m *Manager) Evaluate(symbol string, candles []bitget.Candle) []Signal {
	m.mu.RLock()
	strategies := make([]Strategy, len(m.strategies))
	copy(strategies, m.strategies)
	m.mu.RUnlock()

	var signals []Signal
	for _, s := range strategies {
		if sig := safeGenerate(s, symbol, candles); sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals
}

func safeGenerate(s Strategy, symbol string, candles []bitget.Candle) (sig *Signal) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("strategy: %s panicked on %s: %v", s.Name(), symbol, r)
			sig = nil
		}
	}()
	return s.GenerateSignal(symbol, candles)
}

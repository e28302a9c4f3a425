package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"bitget-trader/internal/events"
)

// Monitor counts bus traffic into metrics and forwards risk alerts.
type Monitor struct {
	Bus     *events.Bus
	Metrics *SystemMetrics
	AlertFn func(string)
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}

	m.count(ctx, events.EventPriceTick, m.Metrics.IncrementTicks)
	m.count(ctx, events.EventStrategySignal, m.Metrics.IncrementSignals)
	m.count(ctx, events.EventDecision, m.Metrics.IncrementDecisions)
	m.count(ctx, events.EventOrderSubmitted, m.Metrics.IncrementOrders)

	alerts, unsub := m.Bus.Subscribe(events.EventRiskAlert, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-alerts:
				if !ok {
					return
				}
				m.Metrics.IncrementErrors()
				if m.AlertFn != nil {
					m.AlertFn(formatAlert(msg))
				}
			}
		}
	}()
}

func (m *Monitor) count(ctx context.Context, event events.Event, inc func()) {
	if m.Metrics == nil {
		return
	}
	stream, unsub := m.Bus.Subscribe(event, 100)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-stream:
				if !ok {
					return
				}
				inc()
			}
		}
	}()
}

func formatAlert(msg any) string {
	prefix := "[" + time.Now().Format(time.RFC3339) + "] "
	if alert, ok := msg.(events.RiskAlert); ok {
		return prefix + fmt.Sprintf("%s: %s", alert.Symbol, alert.Reason)
	}
	return prefix + "alert triggered"
}

package risk

import (
	"math"
	"testing"

	"bitget-trader/internal/consensus"
	"bitget-trader/internal/strategy"
)

func longDecision(confidence float64) *consensus.Decision {
	return &consensus.Decision{
		Symbol:     "BTCUSDT",
		Action:     consensus.ActionExecute,
		Direction:  strategy.DirectionLong,
		Confidence: confidence,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}
}

func TestValidate(t *testing.T) {
	m := NewManager(Config{MinConfidence: 60, MaxOpenPositions: 3, Leverage: 10})

	tests := []struct {
		name    string
		mutate  func(*consensus.Decision)
		open    int
		wantErr bool
	}{
		{"valid long", func(d *consensus.Decision) {}, 0, false},
		{"confidence below minimum", func(d *consensus.Decision) { d.Confidence = 55 }, 0, true},
		{"at position limit", func(d *consensus.Decision) {}, 3, true},
		{"long stop above entry", func(d *consensus.Decision) { d.StopLoss = 51000 }, 0, true},
		{"long take profit below entry", func(d *consensus.Decision) { d.TakeProfit = 49500 }, 0, true},
		{"zero entry price", func(d *consensus.Decision) { d.EntryPrice = 0 }, 0, true},
		{"no protective levels ok", func(d *consensus.Decision) { d.StopLoss = 0; d.TakeProfit = 0 }, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := longDecision(80)
			tt.mutate(d)
			err := m.Validate(d, tt.open)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("short levels mirror", func(t *testing.T) {
		d := &consensus.Decision{
			Direction:  strategy.DirectionShort,
			Confidence: 80,
			EntryPrice: 50000,
			StopLoss:   51000,
			TakeProfit: 48000,
		}
		if err := m.Validate(d, 0); err != nil {
			t.Fatalf("valid short rejected: %v", err)
		}

		d.StopLoss = 49000
		if err := m.Validate(d, 0); err == nil {
			t.Fatal("short stop below entry accepted")
		}
	})
}

func TestScaleLeverage(t *testing.T) {
	tests := []struct {
		configured int
		confidence float64
		want       int
	}{
		{10, 70, 5},
		{10, 74.9, 5},
		{10, 75, 7},
		{10, 80, 7},
		{10, 84.9, 7},
		{10, 85, 10},
		{10, 95, 10},
		{1, 60, 1},
		{2, 60, 1},
	}
	for _, tt := range tests {
		if got := scaleLeverage(tt.configured, tt.confidence); got != tt.want {
			t.Errorf("scaleLeverage(%d, %v) = %d, want %d", tt.configured, tt.confidence, got, tt.want)
		}
	}
}

func TestCalculatePositionSize(t *testing.T) {
	m := NewManager(Config{MinConfidence: 60, MaxOpenPositions: 3, RiskPerTradePct: 5, Leverage: 10})

	t.Run("zero balance", func(t *testing.T) {
		if plan := m.CalculatePositionSize(0, longDecision(90)); plan != nil {
			t.Fatalf("expected nil plan, got %+v", plan)
		}
	})

	t.Run("negative balance", func(t *testing.T) {
		if plan := m.CalculatePositionSize(-100, longDecision(90)); plan != nil {
			t.Fatalf("expected nil plan, got %+v", plan)
		}
	})

	t.Run("high confidence keeps full leverage", func(t *testing.T) {
		plan := m.CalculatePositionSize(10000, longDecision(90))
		if plan == nil {
			t.Fatal("expected a plan")
		}
		if plan.Margin != 500 {
			t.Fatalf("margin = %v, want 500", plan.Margin)
		}
		if plan.Leverage != 10 {
			t.Fatalf("leverage = %d, want 10", plan.Leverage)
		}
		if math.Abs(plan.Size-0.1) > 1e-9 {
			t.Fatalf("size = %v, want 0.1", plan.Size)
		}
	})

	t.Run("medium confidence trims leverage", func(t *testing.T) {
		plan := m.CalculatePositionSize(10000, longDecision(80))
		if plan == nil {
			t.Fatal("expected a plan")
		}
		if plan.Leverage != 7 {
			t.Fatalf("leverage = %d, want 7", plan.Leverage)
		}
	})

	t.Run("margin capped regardless of config", func(t *testing.T) {
		greedy := NewManager(Config{MinConfidence: 60, MaxOpenPositions: 3, RiskPerTradePct: 20, Leverage: 10})
		plan := greedy.CalculatePositionSize(10000, longDecision(90))
		if plan == nil {
			t.Fatal("expected a plan")
		}
		if plan.Margin != 500 {
			t.Fatalf("margin = %v, want capped 500", plan.Margin)
		}
	})
}

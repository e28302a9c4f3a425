package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventDecision, 1)
	defer unsub()

	b.Publish(EventDecision, "BTCUSDT")

	select {
	case got := <-ch:
		if got != "BTCUSDT" {
			t.Fatalf("payload = %v, want BTCUSDT", got)
		}
	default:
		t.Fatal("no payload delivered")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventPriceTick, 1)
	defer unsub()

	b.Publish(EventPriceTick, 1)
	b.Publish(EventPriceTick, 2)

	if got := <-ch; got != 1 {
		t.Fatalf("first payload = %v, want 1", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected second payload %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventRiskAlert, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}

	// Publishing to a topic with no subscribers must not panic.
	b.Publish(EventRiskAlert, "x")
}

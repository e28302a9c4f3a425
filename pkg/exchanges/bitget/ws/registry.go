package ws

import (
	"log"
	"sync"
)

// SubscriptionKey identifies one logical stream: a channel plus an optional
// instrument id. Account-level channels leave InstID empty.
type SubscriptionKey struct {
	Channel string
	InstID  string
}

// String renders the key the way inbound frames are routed: "channel" or
// "channel_instId".
func (k SubscriptionKey) String() string {
	if k.InstID == "" {
		return k.Channel
	}
	return k.Channel + "_" + k.InstID
}

// Handler consumes one parsed push message for a subscribed stream.
type Handler func(msg PushMessage)

// Registry maps subscription keys to callback lists. Dispatch runs on the
// connection read loop while application code subscribes and unsubscribes
// from other goroutines, so every operation takes the registry mutex.
type Registry struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Add appends a callback under key. Multiple callbacks per key are allowed;
// existing callbacks are never replaced.
func (r *Registry) Add(key SubscriptionKey, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key.String()
	r.handlers[k] = append(r.handlers[k], h)
}

// Remove drops all callbacks for key.
func (r *Registry) Remove(key SubscriptionKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, key.String())
}

// Len reports the number of callbacks registered under key.
func (r *Registry) Len(key SubscriptionKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[key.String()])
}

// Dispatch invokes every callback registered under key, in addition order.
// The list is snapshotted first so a callback may subscribe or unsubscribe
// without corrupting the iteration, and each callback runs under a recover
// so one panicking subscriber cannot stop delivery to the others or kill
// the read loop. Dispatching to a key nobody listens on is a no-op.
func (r *Registry) Dispatch(key string, msg PushMessage) {
	r.mu.Lock()
	snapshot := make([]Handler, len(r.handlers[key]))
	copy(snapshot, r.handlers[key])
	r.mu.Unlock()

	for _, h := range snapshot {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("ws registry: handler panic on %s: %v", key, rec)
				}
			}()
			h(msg)
		}()
	}
}

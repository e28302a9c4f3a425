package ws

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"bitget-trader/pkg/exchanges/bitget"
)

// fakeConn is an in-memory socket. Frames pushed into in come out of
// ReadMessage; writes are recorded and signalled on writeCh.
type fakeConn struct {
	in      chan []byte
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	writes  [][]byte
	writeCh chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 16),
		closed:  make(chan struct{}),
		writeCh: make(chan []byte, 16),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.in:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	c.mu.Unlock()
	select {
	case c.writeCh <- data:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fail simulates a transport drop.
func (c *fakeConn) fail() { _ = c.Close() }

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	dialCh chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialCh: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) dial(context.Context, string) (Conn, error) {
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	d.dialCh <- c
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func awaitConn(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()
	select {
	case c := <-d.dialCh:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

func awaitWrite(t *testing.T, c *fakeConn) []byte {
	t.Helper()
	select {
	case w := <-c.writeCh:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write")
		return nil
	}
}

func testAuth(t *testing.T) *bitget.Authenticator {
	t.Helper()
	auth, err := bitget.NewAuthenticator(bitget.Credentials{APIKey: "k", SecretKey: "s", Passphrase: "p"})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return auth
}

func TestConnectPublicIdempotent(t *testing.T) {
	d := newFakeDialer()
	c := NewClient(Config{Dialer: d.dial, PingInterval: time.Hour, ReconnectDelay: time.Hour})
	defer c.Close()

	if err := c.ConnectPublic(context.Background()); err != nil {
		t.Fatalf("ConnectPublic: %v", err)
	}
	if err := c.ConnectPublic(context.Background()); err != nil {
		t.Fatalf("second ConnectPublic: %v", err)
	}

	if got := d.dials(); got != 1 {
		t.Fatalf("expected 1 handshake, transport saw %d", got)
	}
	if c.PublicState() != StateReady {
		t.Fatalf("public state = %s, want READY", c.PublicState())
	}
}

func TestConnectPublicConcurrent(t *testing.T) {
	d := newFakeDialer()
	c := NewClient(Config{Dialer: d.dial, PingInterval: time.Hour, ReconnectDelay: time.Hour})
	defer c.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.ConnectPublic(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ConnectPublic: %v", err)
		}
	}

	if got := d.dials(); got != 1 {
		t.Fatalf("expected 1 handshake, transport saw %d", got)
	}
	if c.PublicState() != StateReady {
		t.Fatalf("public state = %s, want READY", c.PublicState())
	}
}

func TestConnectPrivateSendsLogin(t *testing.T) {
	d := newFakeDialer()
	c := NewClient(Config{Dialer: d.dial, Auth: testAuth(t), PingInterval: time.Hour, ReconnectDelay: time.Hour})
	defer c.Close()

	if err := c.ConnectPrivate(context.Background()); err != nil {
		t.Fatalf("ConnectPrivate: %v", err)
	}
	conn := awaitConn(t, d)

	var frame struct {
		Op   string              `json:"op"`
		Args []map[string]string `json:"args"`
	}
	if err := json.Unmarshal(awaitWrite(t, conn), &frame); err != nil {
		t.Fatalf("unmarshal login frame: %v", err)
	}
	if frame.Op != "login" {
		t.Fatalf("first private frame op = %s, want login", frame.Op)
	}
	if len(frame.Args) != 1 || frame.Args[0]["sign"] == "" {
		t.Fatalf("login frame missing signature: %+v", frame.Args)
	}

	// Login ack promotes the connection to READY.
	conn.in <- []byte(`{"event":"login","code":0}`)
	deadline := time.Now().Add(2 * time.Second)
	for c.PrivateState() != StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("private state = %s, want READY", c.PrivateState())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectPrivateWithoutAuth(t *testing.T) {
	c := NewClient(Config{Dialer: newFakeDialer().dial})
	if err := c.ConnectPrivate(context.Background()); err != ErrNoAuthenticator {
		t.Fatalf("expected ErrNoAuthenticator, got %v", err)
	}
}

func TestReconnectReauthenticatesBeforeDispatch(t *testing.T) {
	d := newFakeDialer()
	reconnected := make(chan bool, 1)
	c := NewClient(Config{
		Dialer:         d.dial,
		Auth:           testAuth(t),
		PingInterval:   time.Hour,
		ReconnectDelay: 10 * time.Millisecond,
		OnReconnect:    func(private bool) { reconnected <- private },
	})
	defer c.Close()

	if err := c.ConnectPrivate(context.Background()); err != nil {
		t.Fatalf("ConnectPrivate: %v", err)
	}
	conn1 := awaitConn(t, d)
	awaitWrite(t, conn1) // initial login

	received := make(chan PushMessage, 1)
	c.Registry().Add(SubscriptionKey{Channel: "orders"}, func(msg PushMessage) { received <- msg })

	conn1.fail()
	conn2 := awaitConn(t, d)

	// The first frame on the fresh socket must be a new login: the exchange
	// forgets the session when the socket drops.
	var frame struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(awaitWrite(t, conn2), &frame); err != nil {
		t.Fatalf("unmarshal reconnect frame: %v", err)
	}
	if frame.Op != "login" {
		t.Fatalf("first frame after reconnect op = %s, want login", frame.Op)
	}

	select {
	case private := <-reconnected:
		if !private {
			t.Fatal("OnReconnect reported a public connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnReconnect never fired")
	}

	// Channel data flowing after re-auth still reaches the registry.
	conn2.in <- []byte(`{"action":"snapshot","arg":{"instType":"USDT-FUTURES","channel":"orders"},"data":[{}]}`)
	select {
	case msg := <-received:
		if msg.Arg.Channel != "orders" {
			t.Fatalf("dispatched channel = %s", msg.Arg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push message never dispatched after reconnect")
	}
}

func TestSubscribeLazilyConnects(t *testing.T) {
	d := newFakeDialer()
	c := NewClient(Config{Dialer: d.dial, PingInterval: time.Hour, ReconnectDelay: time.Hour})
	defer c.Close()

	if err := c.Subscribe(context.Background(), "ticker", "USDT-FUTURES", "BTCUSDT", false); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if d.dials() != 1 {
		t.Fatalf("expected lazy connect to dial once, got %d", d.dials())
	}

	conn := awaitConn(t, d)
	var frame struct {
		Op   string       `json:"op"`
		Args []channelArg `json:"args"`
	}
	if err := json.Unmarshal(awaitWrite(t, conn), &frame); err != nil {
		t.Fatalf("unmarshal subscribe frame: %v", err)
	}
	if frame.Op != "subscribe" || len(frame.Args) != 1 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.Args[0].Channel != "ticker" || frame.Args[0].InstID != "BTCUSDT" {
		t.Fatalf("unexpected subscribe args: %+v", frame.Args[0])
	}
}

func TestMalformedFrameDoesNotKillReadLoop(t *testing.T) {
	d := newFakeDialer()
	c := NewClient(Config{Dialer: d.dial, PingInterval: time.Hour, ReconnectDelay: time.Hour})
	defer c.Close()

	if err := c.ConnectPublic(context.Background()); err != nil {
		t.Fatalf("ConnectPublic: %v", err)
	}
	conn := awaitConn(t, d)

	received := make(chan PushMessage, 1)
	c.Registry().Add(SubscriptionKey{Channel: "ticker", InstID: "BTCUSDT"}, func(msg PushMessage) { received <- msg })

	conn.in <- []byte("pong")
	conn.in <- []byte("{not json at all")
	conn.in <- []byte(`{"event":"subscribe","arg":{"channel":"ticker","instId":"BTCUSDT"}}`)
	conn.in <- []byte(`{"action":"update","arg":{"channel":"ticker","instId":"BTCUSDT"},"data":[{"lastPr":"50000"}]}`)

	select {
	case msg := <-received:
		if msg.Action != "update" || len(msg.Data) != 1 {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("good frame after malformed one was not delivered")
	}
}

func TestUnsubscribeWithoutConnection(t *testing.T) {
	c := NewClient(Config{Dialer: newFakeDialer().dial})
	if err := c.Unsubscribe("ticker", "USDT-FUTURES", "BTCUSDT", false); err == nil {
		t.Fatal("expected error unsubscribing with no connection")
	}
}

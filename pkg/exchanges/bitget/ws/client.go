package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bitget-trader/pkg/exchanges/bitget"
)

const (
	// DefaultPublicURL and DefaultPrivateURL are the Bitget v2 stream endpoints.
	DefaultPublicURL  = "wss://ws.bitget.com/v2/ws/public"
	DefaultPrivateURL = "wss://ws.bitget.com/v2/ws/private"

	defaultPingInterval   = 30 * time.Second
	defaultReconnectDelay = 30 * time.Second
)

// ErrNoAuthenticator is returned when a private operation is attempted on a
// client built without credentials.
var ErrNoAuthenticator = errors.New("ws: private connection requires an authenticator")

// State tracks the lifecycle of one logical connection.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticating
	StateReady
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateReady:
		return "READY"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Conn is the minimal socket surface the manager needs. *websocket.Conn
// satisfies it; tests inject fakes through Config.Dialer.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a socket to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Config holds connection manager settings.
type Config struct {
	PublicURL  string
	PrivateURL string

	// Auth is required for the private connection; it rebuilds the login
	// frame on every (re)connect since the exchange drops session state
	// with the socket.
	Auth *bitget.Authenticator

	PingInterval   time.Duration
	ReconnectDelay time.Duration

	// Dialer overrides the transport; nil uses gorilla/websocket.
	Dialer Dialer

	// OnReconnect fires after a connection is re-established (and, for the
	// private socket, after the login frame is re-sent). The exchange does
	// not remember subscriptions across a drop, so callers that need their
	// streams back re-issue Subscribe from this hook.
	OnReconnect func(private bool)

	// OnError receives runtime socket errors from background loops.
	OnError func(err error)
}

// Client multiplexes the public and private Bitget websocket connections and
// routes inbound data frames through the channel registry.
type Client struct {
	cfg      Config
	registry *Registry

	mu      sync.Mutex
	public  *managedConn
	private *managedConn
}

// managedConn is one logical connection and its session bookkeeping.
type managedConn struct {
	url     string
	private bool
	state   atomic.Int32

	writeMu sync.Mutex
	conn    Conn

	cancel  context.CancelFunc
	running bool
}

func (m *managedConn) setState(s State) {
	m.state.Store(int32(s))
}

func (m *managedConn) State() State {
	return State(m.state.Load())
}

// write serializes frame writes; the read loop, ping ticker and application
// subscribe calls all share the socket.
func (m *managedConn) write(messageType int, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.conn == nil {
		return errors.New("ws: connection not established")
	}
	return m.conn.WriteMessage(messageType, data)
}

// NewClient builds a connection manager. Auth may be nil for public-only use.
func NewClient(cfg Config) *Client {
	if cfg.PublicURL == "" {
		cfg.PublicURL = DefaultPublicURL
	}
	if cfg.PrivateURL == "" {
		cfg.PrivateURL = DefaultPrivateURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = gorillaDial
	}
	return &Client{
		cfg:      cfg,
		registry: NewRegistry(),
	}
}

// Registry exposes the channel registry so callers can register callbacks
// under a subscription key before or after sending the subscribe frame.
func (c *Client) Registry() *Registry {
	return c.registry
}

// PublicState reports the public connection state.
func (c *Client) PublicState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.public == nil {
		return StateDisconnected
	}
	return c.public.State()
}

// PrivateState reports the private connection state.
func (c *Client) PrivateState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.private == nil {
		return StateDisconnected
	}
	return c.private.State()
}

// ConnectPublic opens the public connection. Calling it while the connection
// is already running is a no-op.
func (c *Client) ConnectPublic(ctx context.Context) error {
	return c.connect(ctx, false)
}

// ConnectPrivate opens the private connection and authenticates. Calling it
// while the connection is already running is a no-op.
func (c *Client) ConnectPrivate(ctx context.Context) error {
	if c.cfg.Auth == nil {
		return ErrNoAuthenticator
	}
	return c.connect(ctx, true)
}

func (c *Client) connect(ctx context.Context, private bool) error {
	c.mu.Lock()
	mc := c.conn(private)
	if mc != nil && mc.running {
		c.mu.Unlock()
		return nil
	}

	mc = &managedConn{url: c.cfg.PublicURL, private: private}
	if private {
		mc.url = c.cfg.PrivateURL
	}
	mc.setState(StateConnecting)
	// Claim the slot before releasing the lock so a concurrent connect
	// no-ops instead of dialing a second socket over this one.
	mc.running = true
	c.setConn(private, mc)
	c.mu.Unlock()

	// First dial is synchronous so the caller sees connect failures.
	conn, err := c.cfg.Dialer(ctx, mc.url)
	if err != nil {
		mc.setState(StateDisconnected)
		c.clearConn(private, mc)
		return err
	}
	mc.conn = conn
	mc.setState(StateConnected)

	if private {
		if err := c.login(mc); err != nil {
			_ = conn.Close()
			mc.setState(StateDisconnected)
			c.clearConn(private, mc)
			return err
		}
	} else {
		mc.setState(StateReady)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	mc.cancel = cancel
	c.mu.Unlock()
	go c.run(runCtx, mc)
	return nil
}

func (c *Client) conn(private bool) *managedConn {
	if private {
		return c.private
	}
	return c.public
}

func (c *Client) setConn(private bool, mc *managedConn) {
	if private {
		c.private = mc
	} else {
		c.public = mc
	}
}

func (c *Client) clearConn(private bool, mc *managedConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mc.running = false
	if c.conn(private) == mc {
		c.setConn(private, nil)
	}
}

// login sends the authentication frame. Session state is not preserved by
// the exchange across drops, so this runs on every private (re)connect.
func (c *Client) login(mc *managedConn) error {
	mc.setState(StateAuthenticating)
	raw, err := json.Marshal(loginFrame(c.cfg.Auth.LoginArgs()))
	if err != nil {
		return err
	}
	if err := mc.write(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	return nil
}

// run services one logical connection: keep-alive, read loop, reconnect.
func (c *Client) run(ctx context.Context, mc *managedConn) {
	for {
		readErr := c.session(ctx, mc)
		_ = mc.conn.Close()

		if ctx.Err() != nil {
			mc.setState(StateDisconnected)
			return
		}
		if readErr != nil {
			c.reportError(readErr)
		}

		mc.setState(StateReconnecting)
		log.Printf("ws: %s connection lost, reconnecting in %s", connName(mc.private), c.cfg.ReconnectDelay)

		for {
			select {
			case <-ctx.Done():
				mc.setState(StateDisconnected)
				return
			case <-time.After(c.cfg.ReconnectDelay):
			}

			mc.setState(StateConnecting)
			conn, err := c.cfg.Dialer(ctx, mc.url)
			if err != nil {
				c.reportError(fmt.Errorf("reconnect %s: %w", connName(mc.private), err))
				mc.setState(StateReconnecting)
				continue
			}

			mc.writeMu.Lock()
			mc.conn = conn
			mc.writeMu.Unlock()
			mc.setState(StateConnected)

			if mc.private {
				if err := c.login(mc); err != nil {
					c.reportError(err)
					_ = conn.Close()
					mc.setState(StateReconnecting)
					continue
				}
			} else {
				mc.setState(StateReady)
			}

			log.Printf("ws: %s connection re-established", connName(mc.private))
			if c.cfg.OnReconnect != nil {
				c.cfg.OnReconnect(mc.private)
			}
			break
		}
	}
}

// session runs the ping ticker and the read loop until the socket fails.
func (c *Client) session(ctx context.Context, mc *managedConn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := mc.write(websocket.TextMessage, []byte("ping")); err != nil {
					log.Printf("ws: %s ping error: %v", connName(mc.private), err)
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, msg, err := mc.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%s read: %w", connName(mc.private), err)
		}
		c.handleMessage(mc, msg)
	}
}

// handleMessage routes one inbound frame. Control messages short-circuit;
// malformed frames are logged and dropped so the read loop never dies on a
// bad payload.
func (c *Client) handleMessage(mc *managedConn, msg []byte) {
	text := string(msg)
	if strings.Contains(text, "pong") {
		return
	}

	if strings.Contains(text, `"event"`) {
		var ev eventMessage
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Printf("ws: drop malformed event frame: %v", err)
			return
		}
		switch ev.Event {
		case "login":
			mc.setState(StateReady)
			log.Printf("ws: %s authenticated", connName(mc.private))
		case "subscribe":
			log.Printf("ws: subscribed %s %s", ev.Arg.Channel, ev.Arg.InstID)
		case "unsubscribe":
			log.Printf("ws: unsubscribed %s %s", ev.Arg.Channel, ev.Arg.InstID)
		case "error":
			log.Printf("ws: %s exchange error code=%v msg=%s", connName(mc.private), ev.Code, ev.Msg)
		}
		return
	}

	var push PushMessage
	if err := json.Unmarshal(msg, &push); err != nil {
		log.Printf("ws: drop malformed frame: %v", err)
		return
	}
	if push.Arg.Channel == "" {
		log.Printf("ws: drop frame without channel: %s", truncate(text, 120))
		return
	}

	key := SubscriptionKey{Channel: push.Arg.Channel, InstID: push.Arg.InstID}
	c.registry.Dispatch(key.String(), push)
}

// Subscribe sends a subscribe frame for (channel, instId). If the target
// connection is not running it is connected first. Callback registration is
// the caller's job (via Registry); duplicate subscribe frames for the same
// key are tolerated by the exchange, so fan-out needs no bookkeeping here.
func (c *Client) Subscribe(ctx context.Context, channel, instType, instID string, private bool) error {
	if err := c.ensureConnected(ctx, private); err != nil {
		return err
	}
	raw, err := json.Marshal(subscribeFrame(instType, channel, instID))
	if err != nil {
		return err
	}
	c.mu.Lock()
	mc := c.conn(private)
	c.mu.Unlock()
	if mc == nil {
		return errors.New("ws: connection not established")
	}
	return mc.write(websocket.TextMessage, raw)
}

// Unsubscribe sends an unsubscribe frame. It is fire-and-forget at the wire
// level and does not touch the registry; callers drop their own callbacks.
func (c *Client) Unsubscribe(channel, instType, instID string, private bool) error {
	c.mu.Lock()
	mc := c.conn(private)
	c.mu.Unlock()
	if mc == nil || !mc.running {
		return errors.New("ws: connection not established")
	}
	raw, err := json.Marshal(unsubscribeFrame(instType, channel, instID))
	if err != nil {
		return err
	}
	return mc.write(websocket.TextMessage, raw)
}

func (c *Client) ensureConnected(ctx context.Context, private bool) error {
	c.mu.Lock()
	mc := c.conn(private)
	running := mc != nil && mc.running
	c.mu.Unlock()
	if running {
		return nil
	}
	if private {
		return c.ConnectPrivate(ctx)
	}
	return c.ConnectPublic(ctx)
}

// Close shuts down both connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, mc := range []*managedConn{c.public, c.private} {
		if mc == nil {
			continue
		}
		if mc.cancel != nil {
			mc.cancel()
		}
		mc.writeMu.Lock()
		if mc.conn != nil {
			_ = mc.conn.Close()
		}
		mc.writeMu.Unlock()
		mc.running = false
		mc.setState(StateDisconnected)
	}
	c.public = nil
	c.private = nil
}

func (c *Client) reportError(err error) {
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
		return
	}
	log.Printf("ws: %v", err)
}

func connName(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package upstream implements the upstream connector: dial, receive
// loop, exponential-backoff reconnection, ping/pong keepalive, and error
// counters for the single opaque upstream event socket this service
// depends on.
package upstream

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

// OnMessage is invoked once per raw upstream message. It must not block
// for long — it is called synchronously from the connector's read loop.
type OnMessage func(raw []byte)

// State is the connector's observable connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Client connects to the upstream event socket and republishes every
// received message to an injected handler.
type Client struct {
	url string

	onMessage OnMessage
	state     atomic.Int32

	pingInterval          time.Duration
	initialReconnectDelay time.Duration
	maxReconnectDelay     time.Duration
	pingTimeout           time.Duration
	closeTimeout          time.Duration
}

type Options struct {
	PingInterval          time.Duration
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	PingTimeout           time.Duration
	CloseTimeout          time.Duration
}

func NewClient(url string, onMessage OnMessage, opts Options) *Client {
	c := &Client{
		url:                   url,
		onMessage:             onMessage,
		pingInterval:          opts.PingInterval,
		initialReconnectDelay: opts.InitialReconnectDelay,
		maxReconnectDelay:     opts.MaxReconnectDelay,
		pingTimeout:           opts.PingTimeout,
		closeTimeout:          opts.CloseTimeout,
	}
	if c.initialReconnectDelay <= 0 {
		c.initialReconnectDelay = time.Second
	}
	if c.maxReconnectDelay <= 0 {
		c.maxReconnectDelay = 30 * time.Second
	}
	if c.pingTimeout <= 0 {
		c.pingTimeout = 10 * time.Second
	}
	if c.closeTimeout <= 0 {
		c.closeTimeout = 5 * time.Second
	}
	return c
}

// State reports the connector's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// ConnectWithRetry connects to the upstream socket and reconnects on
// failure with exponential backoff, doubling per attempt up to
// maxReconnectDelay. The attempt streak resets whenever the previous
// attempt reached the Connected state, so the first retry after a dropped
// connection waits initialReconnectDelay. Blocks until ctx is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return
		}

		c.setState(Connecting)
		err := c.connect(ctx)
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return
		}

		if c.State() == Connected {
			attempt = 0
		}
		c.setState(Reconnecting)

		attempt++
		telemetry.Metrics.Disconnections.Inc()
		backoff := time.Duration(float64(c.initialReconnectDelay) * math.Pow(2, float64(min(attempt-1, 5))))
		if backoff > c.maxReconnectDelay {
			backoff = c.maxReconnectDelay
		}

		if err != nil {
			telemetry.Warnf("upstream: connection lost (attempt %d): %v — retrying in %s", attempt, err, backoff)
		}

		select {
		case <-ctx.Done():
			c.setState(Disconnected)
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()
	// Cancelling ctx closes the socket so a blocked read returns at once.
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	// The read deadline is pingInterval+pingTimeout from connect and moves
	// forward each time the server sends a ping. The client answers server
	// pings but sends none of its own, and data messages do not extend the
	// deadline: a server that sends no ping within that window is treated
	// as a dead connection.
	conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pingTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pingTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.closeTimeout))
	})

	c.setState(Connected)
	telemetry.Infof("upstream: connected to %s", c.url)
	telemetry.Metrics.Connections.Inc()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		c.dispatch(raw)
	}
}

// Stats is a point-in-time snapshot for the /stats HTTP surface.
type Stats struct {
	State          State  `json:"state"`
	URL            string `json:"url"`
	Connections    int64  `json:"connections"`
	Disconnections int64  `json:"disconnections"`
	ParseErrors    int64  `json:"parse_errors"`
	CallbackErrors int64  `json:"callback_errors"`
}

func (c *Client) GetStats() Stats {
	return Stats{
		State:          c.State(),
		URL:            c.url,
		Connections:    telemetry.Metrics.Connections.Value(),
		Disconnections: telemetry.Metrics.Disconnections.Value(),
		ParseErrors:    telemetry.Metrics.ParseErrors.Value(),
		CallbackErrors: telemetry.Metrics.CallbackErrors.Value(),
	}
}

func (c *Client) dispatch(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.CallbackErrors.Inc()
			telemetry.Errorf("upstream: onMessage callback panic: %v", r)
		}
	}()
	c.onMessage(raw)
}

// Package broadcaster implements the channel broadcaster: a single
// bounded inbox between the sanitization pipeline and a background
// fan-out goroutine, which in turn writes to every live per-channel (and
// "all") subscriber over its own bounded per-client queue.
package broadcaster

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/charleschow/rugs-sanitizer/internal/sanitizer/model"
	"github.com/charleschow/rugs-sanitizer/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type subscriber struct {
	id      string
	channel model.Channel
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
}

// Broadcaster owns one bounded inbox (the E→G leg) drained by a single
// fan-out goroutine, and a set of per-channel subscribers each with its
// own bounded send queue (the G→subscriber leg).
type Broadcaster struct {
	inbox chan model.SanitizedEvent
	stop  chan struct{}

	mu          sync.Mutex
	subscribers map[model.Channel]map[*subscriber]struct{}
}

func New(maxQueueSize int) *Broadcaster {
	if maxQueueSize <= 0 {
		maxQueueSize = 1000
	}
	return &Broadcaster{
		inbox: make(chan model.SanitizedEvent, maxQueueSize),
		stop:  make(chan struct{}),
		subscribers: map[model.Channel]map[*subscriber]struct{}{
			model.ChannelGame:    {},
			model.ChannelStats:   {},
			model.ChannelTrades:  {},
			model.ChannelHistory: {},
			model.ChannelAll:     {},
		},
	}
}

// Run drains the inbox and fans each event out to subscribers. It blocks
// until Close closes the inbox and the remaining events are drained, then
// closes stop to release Close; callers should run it in its own goroutine.
func (b *Broadcaster) Run() {
	for evt := range b.inbox {
		b.fanOut(evt)
	}
	close(b.stop)
}

// Broadcast enqueues evt for fan-out. Non-blocking: if the inbox is full,
// the event is dropped and total_dropped is bumped — the spec's
// drop-newest overflow policy.
func (b *Broadcaster) Broadcast(evt model.SanitizedEvent) {
	select {
	case b.inbox <- evt:
		telemetry.Metrics.TotalEvents.Inc()
	default:
		telemetry.Metrics.TotalDropped.Inc()
		telemetry.Warnf("broadcaster: inbox full (cap=%d), dropping event channel=%s", cap(b.inbox), evt.Channel)
	}
}

// Close stops accepting new events and waits for the fan-out goroutine to
// drain what remains.
func (b *Broadcaster) Close() {
	close(b.inbox)
	<-b.stop
}

func (b *Broadcaster) fanOut(evt model.SanitizedEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		telemetry.Warnf("broadcaster: marshal error: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.subscribers[evt.Channel] {
		b.send(c, data)
	}
	if evt.Channel != model.ChannelAll {
		for c := range b.subscribers[model.ChannelAll] {
			b.send(c, data)
		}
	}
	bumpSentCounter(evt.Channel)
}

func bumpSentCounter(channel model.Channel) {
	switch channel {
	case model.ChannelGame:
		telemetry.Metrics.EventsSentGame.Inc()
	case model.ChannelStats:
		telemetry.Metrics.EventsSentStats.Inc()
	case model.ChannelTrades:
		telemetry.Metrics.EventsSentTrades.Inc()
	case model.ChannelHistory:
		telemetry.Metrics.EventsSentHistory.Inc()
	}
}

// send is the non-blocking per-client enqueue — called with b.mu held.
func (b *Broadcaster) send(c *subscriber, data []byte) {
	select {
	case c.send <- data:
	default:
		telemetry.Warnf("broadcaster: dropping message for slow subscriber id=%s channel=%s", c.id, c.channel)
	}
}

// HandleWS upgrades the request and subscribes the connection to channel.
// Unknown channel names close the connection immediately with code 4004.
func (b *Broadcaster) HandleWS(channel model.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validChannel(channel) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err == nil {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(4004, "unknown channel"), time.Now().Add(writeDeadline))
				conn.Close()
			}
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			telemetry.Warnf("broadcaster: upgrade failed: %v", err)
			return
		}

		c := &subscriber{
			id:      uuid.NewString(),
			channel: channel,
			conn:    conn,
			send:    make(chan []byte, clientSendBuf),
			done:    make(chan struct{}),
		}

		b.mu.Lock()
		b.subscribers[channel][c] = struct{}{}
		b.mu.Unlock()

		telemetry.Infof("broadcaster: subscriber connected id=%s channel=%s", c.id, channel)
		telemetry.Metrics.ClientsConnected.Inc()

		go b.writePump(c)
		go b.readPump(c)
	}
}

func validChannel(channel model.Channel) bool {
	switch channel {
	case model.ChannelGame, model.ChannelStats, model.ChannelTrades, model.ChannelHistory, model.ChannelAll:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) writePump(c *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		b.removeSubscriber(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("broadcaster: write error id=%s: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pingControl mirrors the subscriber control-message contract: a client
// may send {"action":"ping","ts":...} and expects {"type":"pong","ts":...}
// echoed back. Any other payload is ignored.
type pingControl struct {
	Action string `json:"action"`
	Ts     int64  `json:"ts"`
}

func (b *Broadcaster) readPump(c *subscriber) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ctrl pingControl
		if err := json.Unmarshal(raw, &ctrl); err == nil && ctrl.Action == "ping" {
			reply, _ := json.Marshal(struct {
				Type string `json:"type"`
				Ts   int64  `json:"ts"`
			}{Type: "pong", Ts: ctrl.Ts})
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

func (b *Broadcaster) removeSubscriber(c *subscriber) {
	b.mu.Lock()
	delete(b.subscribers[c.channel], c)
	b.mu.Unlock()
	telemetry.Infof("broadcaster: subscriber disconnected id=%s channel=%s", c.id, c.channel)
	telemetry.Metrics.ClientsDisconnected.Inc()
}

// ClientCount returns the number of live subscribers per channel.
func (b *Broadcaster) ClientCount() map[model.Channel]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[model.Channel]int, len(b.subscribers))
	for ch, subs := range b.subscribers {
		counts[ch] = len(subs)
	}
	return counts
}

// Stats is a point-in-time snapshot for the /stats HTTP surface.
type Stats struct {
	TotalEvents      int64                 `json:"total_events"`
	TotalDropped     int64                 `json:"total_dropped"`
	ClientsConnected int64                 `json:"clients_connected"`
	ClientsDisconnected int64              `json:"clients_disconnected"`
	ClientCount      map[model.Channel]int `json:"client_count"`
	QueueDepth       int                   `json:"queue_depth"`
}

func (b *Broadcaster) GetStats() Stats {
	return Stats{
		TotalEvents:         telemetry.Metrics.TotalEvents.Value(),
		TotalDropped:        telemetry.Metrics.TotalDropped.Value(),
		ClientsConnected:    telemetry.Metrics.ClientsConnected.Value(),
		ClientsDisconnected: telemetry.Metrics.ClientsDisconnected.Value(),
		ClientCount:         b.ClientCount(),
		QueueDepth:          len(b.inbox),
	}
}

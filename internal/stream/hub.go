package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/tweets/internal/ids"
	"github.com/eldtechnologies/tweets/internal/metrics"
	"github.com/eldtechnologies/tweets/internal/models"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// CORS is already applied by the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Snapshotter yields the current tweets, newest first.
type Snapshotter interface {
	Recent() []models.Tweet
}

// Encoder converts tweets for the wire.
type Encoder func(models.Tweet) interface{}

// Event is the JSON envelope sent to clients.
type Event struct {
	Event string      `json:"event"` // "snapshot" or "tweet"
	ID    string      `json:"id"`
	Data  interface{} `json:"data"`
}

// Hub fans out newly appended tweets to connected websocket clients.
type Hub struct {
	tweets Snapshotter
	encode Encoder
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan outbound

	// inSnapshot holds IDs already delivered by the connect snapshot.
	// Only writePump touches it once the snapshot is written.
	inSnapshot map[string]struct{}
}

// outbound is a queued event; tweetID is empty for non-tweet events.
type outbound struct {
	tweetID string
	data    []byte
}

// NewHub creates a Hub that greets new clients with a snapshot from tweets.
func NewHub(tweets Snapshotter, encode Encoder, logger zerolog.Logger) *Hub {
	return &Hub{
		tweets:  tweets,
		encode:  encode,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Publish sends tweet to every connected client without blocking.
// Clients whose buffer is full are disconnected. Events from concurrent
// publishers may arrive out of insertion order; clients order by created_at.
func (h *Hub) Publish(tweet models.Tweet) {
	data, err := json.Marshal(Event{Event: "tweet", ID: ids.NewSortable(), Data: h.encode(tweet)})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode stream event")
		return
	}

	msg := outbound{tweetID: tweet.ID, data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("remote_addr", c.conn.RemoteAddr().String()).Msg("stream client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the connection and streams events until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.logger.Debug().Err(err).Msg("stream upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan outbound, sendBufSize),
	}

	// Register before taking the snapshot so no tweet falls between the two.
	// A tweet published in that window is in both; writePump drops the
	// queued copy using inSnapshot.
	if !h.register(c) {
		conn.Close()
		return
	}
	defer h.unregister(c)

	if data, seen, err := h.snapshotEvent(); err == nil {
		c.inSnapshot = seen
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			return
		}
	}

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshotEvent() ([]byte, map[string]struct{}, error) {
	tweets := h.tweets.Recent()
	data := make([]interface{}, len(tweets))
	seen := make(map[string]struct{}, len(tweets))
	for i, t := range tweets {
		data[i] = h.encode(t)
		seen[t.ID] = struct{}{}
	}
	raw, err := json.Marshal(Event{Event: "snapshot", ID: ids.NewSortable(), Data: data})
	return raw, seen, err
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.StreamClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.StreamClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// writePump forwards queued events and sends periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if _, dup := c.inSnapshot[msg.tweetID]; dup {
				delete(c.inSnapshot, msg.tweetID)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump processes control frames and detects disconnects.
// Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/pixelflow/pkg/buffer"
)

const (
	liveSendBuffer   = 16
	liveWriteTimeout = 5 * time.Second
	liveReadTimeout  = 60 * time.Second
)

// LiveMessage is the envelope streamed to websocket clients.
type LiveMessage struct {
	Type      string          `json:"type"` // "sample" or "resolved"
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// LiveSlot is one ring position as streamed.
type LiveSlot struct {
	Index    int    `json:"index"`
	State    string `json:"state"`
	Name     string `json:"name,omitempty"`
	Producer int    `json:"producer"`
	ItemID   string `json:"item_id,omitempty"`
}

// LiveSample is one queue sample as streamed.
type LiveSample struct {
	Size     int        `json:"size"`
	Capacity int        `json:"capacity"`
	Head     int        `json:"head"`
	Tail     int        `json:"tail"`
	Slots    []LiveSlot `json:"slots"`
}

// LiveReporter broadcasts observer output to websocket clients. It is an
// http.Handler; mount it on the metrics server. Slow clients miss messages
// rather than stall the observer.
type LiveReporter struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// NewLiveReporter creates a reporter with no clients.
func NewLiveReporter(logger *slog.Logger) *LiveReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveReporter{
		upgrader: websocket.Upgrader{
			// Read-only telemetry, any origin may subscribe
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger.With("component", "live"),
		clients: make(map[*liveClient]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (r *LiveReporter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &liveClient{conn: conn, send: make(chan []byte, liveSendBuffer)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = conn.Close()
		return
	}
	r.clients[c] = struct{}{}
	count := len(r.clients)
	r.mu.Unlock()

	r.logger.Debug("client connected", "remote", req.RemoteAddr, "clients", count)

	go r.writeLoop(c)
	go r.readLoop(c)
}

// readLoop discards client frames; it exists to notice disconnects.
func (r *LiveReporter) readLoop(c *liveClient) {
	defer r.remove(c)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(liveReadTimeout))
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *LiveReporter) writeLoop(c *liveClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			r.remove(c)
			return
		}
	}
}

func (r *LiveReporter) remove(c *liveClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
	c.close()
}

// Clients returns the number of connected clients.
func (r *LiveReporter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close disconnects every client and refuses new ones.
func (r *LiveReporter) Close() {
	r.mu.Lock()
	r.closed = true
	clients := make([]*liveClient, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*liveClient]struct{})
	r.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Report streams the sample.
func (r *LiveReporter) Report(snap buffer.Snapshot) {
	sample := LiveSample{
		Size:     snap.Size,
		Capacity: snap.Capacity,
		Head:     snap.Head,
		Tail:     snap.Tail,
		Slots:    make([]LiveSlot, len(snap.Slots)),
	}
	for i, s := range snap.Slots {
		sample.Slots[i] = liveSlot(s)
	}
	r.broadcast("sample", sample)
}

// Resolved streams a processed item.
func (r *LiveReporter) Resolved(item buffer.SlotView) {
	r.broadcast("resolved", liveSlot(item))
}

func liveSlot(s buffer.SlotView) LiveSlot {
	ls := LiveSlot{
		Index:    s.Index,
		State:    s.State.String(),
		Name:     s.Name,
		Producer: s.ProducerID,
	}
	if s.State != buffer.SlotEmpty {
		ls.ItemID = s.ItemID.String()
	}
	return ls
}

func (r *LiveReporter) broadcast(kind string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("marshal live payload", "error", err)
		return
	}
	data, err := json.Marshal(LiveMessage{Type: kind, Timestamp: time.Now().UnixMilli(), Payload: body})
	if err != nil {
		r.logger.Warn("marshal live message", "error", err)
		return
	}

	for c := range r.clients {
		select {
		case c.send <- data:
		default:
			// full buffer, this client misses the message
		}
	}
}

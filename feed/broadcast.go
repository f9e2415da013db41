package feed

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/soocke/pixel-scan-go/domain/session"
)

const clientBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans session transitions out to websocket clients. Slow
// clients are disconnected rather than blocking the publisher.
type Broadcaster struct {
	source Source
	logger *slog.Logger

	// seq counts published transitions; bumped before the clients are locked
	seq     atomic.Uint64
	mu      sync.RWMutex
	clients map[*client]bool
}

// NewBroadcaster returns a broadcaster that greets clients with a snapshot of source.
func NewBroadcaster(source Source, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{source: source, logger: logger, clients: make(map[*client]bool)}
}

// Listener returns a session listener publishing every transition. It never blocks.
func (b *Broadcaster) Listener() session.Listener {
	return func(t session.Transition) {
		b.broadcast(Message{Type: MsgTransition, Payload: payloadFor(t)})
	}
}

// AddClient registers conn and queues the current snapshot to it. The
// snapshot is rebuilt if a transition was published while it was being read,
// so the client never misses a transition that follows its snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)
	for {
		seq := b.seq.Load()
		data := b.snapshot()
		b.mu.Lock()
		if b.seq.Load() != seq {
			b.mu.Unlock()
			continue
		}
		b.clients[c] = true
		if data != nil {
			select {
			case c.send <- data:
			default:
			}
		}
		b.mu.Unlock()
		return c
	}
}

func (b *Broadcaster) snapshot() []byte {
	if b.source == nil {
		return nil
	}
	data, err := json.Marshal(Message{Type: MsgSnapshot, Payload: snapshotOf(b.source)})
	if err != nil {
		b.logger.Error("feed snapshot marshal", "error", err)
		return nil
	}
	return data
}

// RemoveClient unregisters c and closes its connection.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("feed marshal", "error", err)
		return
	}
	b.seq.Add(1)
	// sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("feed client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

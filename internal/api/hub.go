// ABOUTME: Websocket hub pushing state snapshots to connected dashboards
// ABOUTME: Changes are coalesced; each client has its own writer with keepalive pings
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	clientBuffer  = 8
)

// Hub fans snapshots out to websocket clients
type Hub struct {
	snapshot func() Snapshot
	debug    bool
	upgrader websocket.Upgrader

	changed chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub that broadcasts snapshot() after every Notify
func NewHub(snapshot func() Snapshot, debug bool) *Hub {
	h := &Hub{
		snapshot: snapshot,
		debug:    debug,
		upgrader: websocket.Upgrader{
			// Dashboards are served from other origins on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		clients: make(map[*wsClient]struct{}),
	}
	go h.broadcastLoop()
	return h
}

// Notify schedules a broadcast; bursts collapse into one snapshot
func (h *Hub) Notify() {
	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops broadcasting
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()
}

// Serve upgrades the request and streams snapshots until the client leaves
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.wg.Add(1)
	h.mu.Unlock()

	if h.debug {
		log.Printf("[DEBUG] WebSocket client connected from %s", c.Request.RemoteAddr)
	}

	if data, err := h.encode(); err == nil {
		client.send <- data
	}

	go h.writer(client)
	h.reader(client)
}

// reader drains client frames so pongs and close frames are processed
func (h *Hub) reader(client *wsClient) {
	defer func() {
		h.remove(client)
		h.wg.Done()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(pingInterval + writeDeadline))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pingInterval + writeDeadline))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && h.debug {
				log.Printf("[DEBUG] WebSocket error: %v", err)
			}
			return
		}
	}
}

// writer sends snapshots and keepalive pings
func (h *Hub) writer(client *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer client.conn.Close()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeDeadline))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcastLoop() {
	for {
		select {
		case <-h.done:
			return
		case <-h.changed:
		}

		data, err := h.encode()
		if err != nil {
			continue
		}

		h.mu.Lock()
		for client := range h.clients {
			select {
			case client.send <- data:
			default:
				// Too slow to keep up; it gets the next snapshot
				if h.debug {
					log.Printf("[DEBUG] WebSocket client lagging, snapshot skipped")
				}
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) encode() ([]byte, error) {
	data, err := json.Marshal(h.snapshot())
	if err != nil {
		log.Printf("Error marshaling snapshot: %v", err)
	}
	return data, err
}

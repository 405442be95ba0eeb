package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/glebk/status-board/internal/feed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// MessageTypeChange marks a change notification frame
const MessageTypeChange = "change"

// Message is the frame sent to viewers for every change event
type Message struct {
	Type  string    `json:"type"`
	ID    string    `json:"id"`
	Table string    `json:"table"`
	Kind  feed.Kind `json:"kind"`
	At    time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the board is readable without credentials
	},
}

// Hub forwards change feed events to connected websocket viewers
type Hub struct {
	feed  feed.Subscriber
	table string

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	closed  bool
}

func NewHub(changes feed.Subscriber, table string) *Hub {
	return &Hub{
		feed:    changes,
		table:   table,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// HandleConnection upgrades the request and streams change frames until the viewer leaves
func (h *Hub) HandleConnection(c *gin.Context) {
	if h.isClosed() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	// Subscribe before the handshake so a client whose dial has returned is
	// already receiving events. One pending frame is enough; viewers re-read
	// the whole table anyway.
	pending := make(chan feed.Event, 1)
	unsubscribe := h.feed.Subscribe(h.table, func(event feed.Event) {
		select {
		case pending <- event:
		default:
		}
	})
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		glog.Errorf("[ws]failed to upgrade connection: %v", err)
		return
	}

	if !h.register(conn) {
		conn.Close()
		return
	}
	defer h.unregister(conn)

	readDone := make(chan struct{})
	go h.readPump(conn, readDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case event := <-pending:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(Message{
				Type:  MessageTypeChange,
				ID:    event.ID,
				Table: event.Table,
				Kind:  event.Kind,
				At:    event.At,
			})
			if err != nil {
				glog.V(1).Infof("[ws]write to %s failed: %v", conn.RemoteAddr(), err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains the socket so close and pong frames are processed
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[conn] = struct{}{}
	glog.Infof("[ws]viewer connected %s (%d total)", conn.RemoteAddr(), len(h.clients))
	return true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	glog.Infof("[ws]viewer disconnected %s (%d total)", conn.RemoteAddr(), len(h.clients))
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// ClientCount returns the number of connected viewers
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every viewer and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/backtest"
	"github.com/stitts-dev/pick-engine/shared/types"
)

const (
	MessageProgress  = "progress"
	MessageCompleted = "completed"
	MessageFailed    = "failed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope every frame is sent in
type Message struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one connection watching one sweep
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte
	Hub   *Hub
}

// Hub fans sweep progress out to the clients watching each run. The latest frame per run
// is kept so a client that connects mid-sweep sees where it stands.
type Hub struct {
	clients    map[*Client]bool
	runClients map[string][]*Client
	latest     map[string][]byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *logrus.Entry
	mutex      sync.RWMutex
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		runClients: make(map[string][]*Client),
		latest:     make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.WithField("component", "websocket_hub"),
	}
}

// Run handles registration until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.runClients[client.RunID] = append(h.runClients[client.RunID], client)
			if frame, ok := h.latest[client.RunID]; ok {
				client.Send <- frame
			}
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"run_id":        client.RunID,
				"total_clients": total,
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.remove(client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"run_id":        client.RunID,
				"total_clients": total,
			}).Info("WebSocket client disconnected")
		}
	}
}

// remove must be called with mutex held
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	watchers := h.runClients[client.RunID]
	for i, c := range watchers {
		if c == client {
			h.runClients[client.RunID] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
	if len(h.runClients[client.RunID]) == 0 {
		delete(h.runClients, client.RunID)
	}
}

// HandleWebSocket upgrades GET /ws/backtest/:run_id
func (h *Hub) HandleWebSocket(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "run_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		RunID: runID,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Hub:   h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Publish sends a message to every client watching runID. A client whose buffer is full
// is dropped.
func (h *Hub) Publish(runID, messageType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: messageType, RunID: runID, Data: data})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if messageType == MessageProgress {
		h.latest[runID] = frame
	} else {
		delete(h.latest, runID)
	}

	var slow []*Client
	for _, client := range h.runClients[runID] {
		select {
		case client.Send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.logger.WithField("run_id", runID).Warn("Dropping slow WebSocket client")
		h.remove(client)
	}
}

// Relay publishes every update from progress until it is closed
func (h *Hub) Relay(progress <-chan backtest.SweepProgress) {
	for update := range progress {
		h.Publish(update.RunID, MessageProgress, update)
	}
}

// ConnectionCount returns the active connections watching runID
func (h *Hub) ConnectionCount(runID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.runClients[runID])
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

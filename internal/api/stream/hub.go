package stream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/profitmonk/high-intent-signals/pkg/logger"
	"github.com/profitmonk/high-intent-signals/pkg/metrics"
)

// Message types (server → client)
const (
	TypeStatus   = "status"   // 접속 직후 현재 상태
	TypeProgress = "progress" // 시작일 하나 완료
	TypeDone     = "done"     // 종료 (성공/실패/취소)
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Message is one websocket frame
type Message struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Hub fans progress messages out to websocket clients subscribed by run id
// ⭐ SSOT: 진행률 스트림은 여기서만
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
}

type client struct {
	id      string
	channel string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. Origins are not checked (read-only progress data).
func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   log.WithField("module", "stream"),
		metrics:  m,
		channels: make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request and subscribes it to channel.
// initial is sent first as a status message.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, channel string, initial interface{}) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:      uuid.NewString(),
		channel: channel,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}

	if data, err := encode(TypeStatus, channel, initial); err == nil {
		c.send <- data
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// Publish sends a message to every client of channel. Slow clients drop frames.
func (h *Hub) Publish(channel, msgType string, data interface{}) {
	msg, err := encode(msgType, channel, data)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode stream message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		select {
		case c.send <- msg:
		default:
			h.logger.WithField("client", c.id).Warn("Stream client buffer full, dropping message")
		}
	}
}

// CloseChannel disconnects every client of channel after queued frames are written
func (h *Hub) CloseChannel(channel string) {
	h.mu.Lock()
	clients := h.channels[channel]
	delete(h.channels, channel)
	h.mu.Unlock()

	for c := range clients {
		c.close()
		h.metrics.StreamConnected(-1)
	}
}

// Clients returns the number of subscribers of channel
func (h *Hub) Clients(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.channels[c.channel] == nil {
		h.channels[c.channel] = make(map[*client]struct{})
	}
	h.channels[c.channel][c] = struct{}{}
	h.mu.Unlock()

	h.metrics.StreamConnected(1)
	h.logger.WithFields(map[string]interface{}{
		"client":  c.id,
		"channel": c.channel,
	}).Debug("Stream client connected")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.channels[c.channel][c]
	if ok {
		delete(h.channels[c.channel], c)
		if len(h.channels[c.channel]) == 0 {
			delete(h.channels, c.channel)
		}
	}
	h.mu.Unlock()

	if ok {
		c.close()
		h.metrics.StreamConnected(-1)
	}
}

// readPump only watches for close/pong; clients never send commands
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Debug("Stream read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encode(msgType, channel string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Message{
		Type:      msgType,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	})
}

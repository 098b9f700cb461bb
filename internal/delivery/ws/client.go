package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// Settings tunes the per-connection pumps
type Settings struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period (must be less than PongWait)
	PingInterval time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	SendBufferSize int

	// Inbound events allowed per second, zero disables limiting
	EventRate  rate.Limit
	EventBurst int
}

// DefaultSettings returns the pump settings used when none are configured
func DefaultSettings() Settings {
	pongWait := 60 * time.Second
	return Settings{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingInterval:   (pongWait * 9) / 10,
		MaxMessageSize: domain.MaxMessageSize,
		SendBufferSize: domain.SendBufferSize,
		EventRate:      domain.DefaultRateLimitEvents,
		EventBurst:     domain.DefaultRateLimitEvents * 2,
	}
}

// Client represents a single websocket connection
type Client struct {
	ID       string
	Session  *Session
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter
	settings Settings

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, session *Session, settings Settings) *Client {
	defaults := DefaultSettings()
	if settings.SendBufferSize <= 0 {
		settings.SendBufferSize = defaults.SendBufferSize
	}
	if settings.PongWait <= 0 || settings.PingInterval <= 0 {
		settings.PongWait, settings.PingInterval = defaults.PongWait, defaults.PingInterval
	}
	if settings.WriteWait <= 0 {
		settings.WriteWait = defaults.WriteWait
	}
	if settings.MaxMessageSize <= 0 {
		settings.MaxMessageSize = defaults.MaxMessageSize
	}
	c := &Client{
		ID:       session.ConnID,
		Session:  session,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, settings.SendBufferSize),
		settings: settings,
		closed:   make(chan struct{}),
	}
	if settings.EventRate > 0 {
		burst := settings.EventBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(settings.EventRate, burst)
	}
	return c
}

// UserID returns the id of the user bound to the connection
func (c *Client) UserID() string {
	return c.Session.UserID
}

// Allow reports whether the client may send another event now
func (c *Client) Allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// markClosed reports true exactly once
func (c *Client) markClosed() bool {
	first := false
	c.closeOnce.Do(func() {
		first = true
		close(c.closed)
	})
	return first
}

// Done is closed once the client has been disconnected
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// ReadPump pumps frames from the websocket connection to handle until the
// connection fails, then calls onClose
func (c *Client) ReadPump(handle func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				l := logger.L()
				l.Debug().Err(err).Str(logger.FieldConnID, c.ID).Msg("unexpected close")
			}
			return
		}
		handle(c, message)
	}
}

// WritePump pumps frames from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame; clients parse each frame as a single JSON object
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

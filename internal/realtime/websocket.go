package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/config"
)

// envelope is the wire format of every frame in both directions
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSClient manages the WebSocket connection to the backend
type WSClient struct {
	*Hub

	config *config.RealtimeConfig
	token  string
	dialer *websocket.Dialer
	conn   *websocket.Conn
	mu     sync.Mutex

	// State
	connected    bool
	reconnecting bool
	lastError    error
	lastSeen     time.Time

	// Channels
	done     chan struct{}
	send     chan []byte
	stopOnce sync.Once
}

// NewWSClient creates a new WebSocket client authenticating with token
func NewWSClient(cfg *config.RealtimeConfig, token string) *WSClient {
	return &WSClient{
		Hub:    NewHub(),
		config: cfg,
		token:  token,
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
		send:   make(chan []byte, 16),
	}
}

// Start begins the WebSocket connection and reconnection loop
func (c *WSClient) Start() {
	go c.connectionLoop()
}

// Stop gracefully closes the WebSocket connection
func (c *WSClient) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// Connected reports whether a connection is currently open
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Status returns the current connection status
func (c *WSClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return ConnectionStatus{
		Transport:    "websocket",
		Connected:    c.connected,
		Reconnecting: c.reconnecting,
		LastError:    errStr,
		LastSeen:     c.lastSeen,
	}
}

// Emit queues an outbound event
func (c *WSClient) Emit(event string, data interface{}) error {
	if !c.Connected() {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	frame, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("send queue full, dropping %s", event)
	}
}

// connectionLoop manages connection and reconnection
func (c *WSClient) connectionLoop() {
	delay := c.config.WSReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	for {
		select {
		case <-c.done:
			return
		default:
		}

		err := c.connect()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			c.reconnecting = true
			c.lastError = err
			c.mu.Unlock()

			log.WithError(err).WithField("retry_in", delay).Warn("Realtime connection failed")
			c.Dispatch(Event{Name: EventError, Err: err})

			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			// Exponential backoff
			delay = delay * 2
			if c.config.WSMaxReconnect > 0 && delay > c.config.WSMaxReconnect {
				delay = c.config.WSMaxReconnect
			}
			continue
		}

		// Connected successfully, reset delay
		delay = c.config.WSReconnectDelay
		if delay <= 0 {
			delay = time.Second
		}

		c.Dispatch(Event{Name: EventConnect})

		// Run read/write loops until disconnection
		c.runConnection()

		c.Dispatch(Event{Name: EventDisconnect})
	}
}

// connect establishes the WebSocket connection
func (c *WSClient) connect() error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	log.WithField("endpoint", c.config.WSEndpoint).Info("Connecting to realtime channel")

	conn, _, err := c.dialer.Dial(c.config.WSEndpoint, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.reconnecting = false
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	log.Info("Realtime channel connected")
	return nil
}

// runConnection handles read/write on an established connection
func (c *WSClient) runConnection() {
	closed := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	// Read loop
	go func() {
		defer wg.Done()
		defer close(closed)
		c.readLoop()
	}()

	// Write loop (handles pings and outgoing messages)
	go func() {
		defer wg.Done()
		c.writeLoop(closed)
	}()

	wg.Wait()

	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// readLoop reads incoming messages from the WebSocket
func (c *WSClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("Realtime read error")
			}
			// Unblock the write loop's pending write, if any
			conn.Close()
			return
		}

		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()

		c.handleMessage(message)
	}
}

// writeLoop handles outgoing messages and pings
func (c *WSClient) writeLoop(closed <-chan struct{}) {
	interval := c.config.WSPingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-closed:
			return

		case message := <-c.send:
			if err := c.write(message); err != nil {
				log.WithError(err).Warn("Realtime write error")
				return
			}

		case <-ticker.C:
			frame, _ := json.Marshal(envelope{Event: "ping"})
			if err := c.write(frame); err != nil {
				log.WithError(err).Warn("Realtime ping error")
				return
			}
		}
	}
}

func (c *WSClient) write(frame []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// handleMessage decodes an inbound frame and dispatches it
func (c *WSClient) handleMessage(data []byte) {
	e, ok := decodeFrame(data)
	if !ok {
		return
	}
	c.Dispatch(e)
}

func decodeFrame(data []byte) (Event, bool) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.WithError(err).Warn("Failed to parse realtime message")
		return Event{}, false
	}

	switch msg.Event {
	case EventNotification, EventNewBooking, EventBookingUpdate:
		var p Payload
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				log.WithError(err).WithField("event", msg.Event).Warn("Failed to parse realtime payload")
				return Event{}, false
			}
		}
		return Event{Name: msg.Event, Payload: p}, true
	case "pong":
		// Heartbeat response, nothing to do
		return Event{}, false
	default:
		log.WithField("event", msg.Event).Debug("Unknown realtime event")
		return Event{}, false
	}
}

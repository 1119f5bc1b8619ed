package uibridge

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veilhq/veil/internal/diaglog"
	"github.com/veilhq/veil/internal/ipc"
)

// Client is the UI-side end of the bridge. It dials the core, delivers
// status snapshots to a callback, and sends commands. On connection loss it
// reconnects with exponential backoff and jitter.
type Client struct {
	url string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool

	// writeMu serializes outbound frames; gorilla/websocket allows only one
	// concurrent writer, and SendCommand is called from the hotkey goroutine
	// and menu actions at once.
	writeMu sync.Mutex

	logger   *diaglog.Logger
	loggerMu sync.RWMutex

	onStatus       func(ipc.StatusSnapshot)
	onDisconnected func()

	reconnectEnabled bool
	reconnectDelay   time.Duration
	stopChan         chan struct{}
	stopOnce         sync.Once
}

// NewClient creates a bridge client for ws://<addr>/ws.
func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Client{
		url:              fmt.Sprintf("ws://%s/ws", addr),
		reconnectEnabled: true,
		reconnectDelay:   time.Second,
		stopChan:         make(chan struct{}),
	}
}

// SetLogger injects a diaglog.Logger. Passing nil disables structured logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

// OnStatus registers the callback invoked for every status snapshot. Must be
// set before Connect.
func (c *Client) OnStatus(fn func(ipc.StatusSnapshot)) {
	c.onStatus = fn
}

// OnDisconnected registers a callback for connection loss.
func (c *Client) OnDisconnected(fn func()) {
	c.onDisconnected = fn
}

// Connect dials the core and starts the read loop.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("uibridge dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log(diaglog.LogEntry{
		Event:   diaglog.EventWSConnect,
		Payload: map[string]interface{}{"url": c.url},
	})

	go c.readMessages()
	return nil
}

// IsConnected reports whether the bridge is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendCommand delivers a command to the core over the bridge.
func (c *Client) SendCommand(cmd ipc.Command) error {
	env, err := commandEnvelope(cmd)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	c.log(diaglog.LogEntry{
		Event:   diaglog.EventWSSend,
		Payload: map[string]interface{}{"command": string(cmd)},
	})
	return nil
}

// Disconnect closes the connection and stops reconnection.
func (c *Client) Disconnect() {
	c.reconnectEnabled = false
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.disconnect()
}

func (c *Client) readMessages() {
	defer func() {
		c.disconnect()
		if c.onDisconnected != nil {
			c.onDisconnected()
		}
		if c.reconnectEnabled {
			c.reconnect()
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != TypeStatus {
			continue
		}

		var snap ipc.StatusSnapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			continue
		}
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventWSRecv,
			Payload: map[string]interface{}{"type": TypeStatus, "concealment": string(snap.Concealment)},
		})
		if c.onStatus != nil {
			c.onStatus(snap)
		}
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventWSDisconnect,
			Payload: map[string]interface{}{"url": c.url},
		})
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// reconnect retries the connection with exponential backoff and jitter.
func (c *Client) reconnect() {
	delay := c.reconnectDelay
	attempt := 0
	for {
		select {
		case <-c.stopChan:
			return
		case <-time.After(delay):
			attempt++
			c.log(diaglog.LogEntry{
				Event:   diaglog.EventWSReconnect,
				Payload: map[string]interface{}{"attempt": attempt, "delay_ms": delay.Milliseconds()},
			})
			if err := c.Connect(); err == nil {
				return
			}

			delay = delay * 2
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}

			// Jitter: ±10% to avoid lockstep retries with the file watcher.
			jitter := time.Duration(float64(delay) * 0.2 * (rand.Float64() - 0.5))
			delay += jitter
			if delay < time.Second {
				delay = time.Second
			}
		}
	}
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentUIBridge
	}
	l.Log(entry)
}

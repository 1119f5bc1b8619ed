package uibridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veilhq/veil/internal/diaglog"
	"github.com/veilhq/veil/internal/ipc"
)

const writeTimeout = 5 * time.Second

// wsClient wraps one UI connection. gorilla/websocket supports exactly one
// concurrent writer per connection, so every outbound frame goes through
// writeEnvelope under writeMu. Broadcast callers arrive from the poller,
// the command watcher, and the analysis worker at once.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeEnvelope(env *Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(env)
}

// Server is the core-side end of the bridge. It accepts UI connections on
// loopback, pushes every status snapshot to all of them, and forwards
// incoming commands to a single handler.
type Server struct {
	addr      string
	onCommand func(ipc.Command)

	logger   *diaglog.Logger
	loggerMu sync.RWMutex

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	clients    map[*wsClient]struct{}
	lastStatus *Envelope

	upgrader websocket.Upgrader
}

// NewServer creates a bridge server. onCommand may be nil; commands are then
// dropped.
func NewServer(addr string, onCommand func(ipc.Command)) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		addr:      addr,
		onCommand: onCommand,
		clients:   make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			// Loopback only, no cross-origin browser clients expected.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetLogger injects a diaglog.Logger. Passing nil disables structured logging.
func (s *Server) SetLogger(l *diaglog.Logger) {
	s.loggerMu.Lock()
	s.logger = l
	s.loggerMu.Unlock()
}

// Start begins listening. Returns immediately; the accept loop runs in the
// background until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("uibridge listen %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Handler: mux}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	go func() {
		// ErrServerClosed after Stop is the normal exit.
		_ = srv.Serve(ln)
	}()
	return nil
}

// Addr returns the bound address, useful when addr was ":0" in tests.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes all client connections and the listener.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.httpServer
	for client := range s.clients {
		client.conn.Close()
	}
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Broadcast pushes a status snapshot to every connected UI. New connections
// receive the most recent snapshot immediately on attach.
func (s *Server) Broadcast(snap ipc.StatusSnapshot) {
	env, err := statusEnvelope(snap)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.lastStatus = env
	clients := make([]*wsClient, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	for _, client := range clients {
		if err := client.writeEnvelope(env); err != nil {
			s.dropClient(client)
		}
	}
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventWSSend,
		Payload: map[string]interface{}{"type": TypeStatus, "clients": len(clients)},
	})
}

// ClientCount returns how many UIs are attached.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	last := s.lastStatus
	s.mu.Unlock()

	s.log(diaglog.LogEntry{
		Event:   diaglog.EventWSConnect,
		Payload: map[string]interface{}{"remote": conn.RemoteAddr().String()},
	})

	// The attach snapshot goes through the same write lock as Broadcast so
	// the two cannot interleave frames on a fresh connection.
	if last != nil {
		if err := client.writeEnvelope(last); err != nil {
			s.dropClient(client)
			return
		}
	}

	go s.readLoop(client)
}

func (s *Server) readLoop(client *wsClient) {
	defer s.dropClient(client)

	for {
		var env Envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != TypeCommand {
			continue
		}
		var payload CommandPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			continue
		}
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventWSRecv,
			Payload: map[string]interface{}{"command": string(payload.Command)},
		})
		if s.onCommand != nil {
			s.onCommand(payload.Command)
		}
	}
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	_, present := s.clients[client]
	delete(s.clients, client)
	s.mu.Unlock()

	if present {
		client.conn.Close()
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventWSDisconnect,
			Payload: map[string]interface{}{"remote": client.conn.RemoteAddr().String()},
		})
	}
}

func (s *Server) log(entry diaglog.LogEntry) {
	s.loggerMu.RLock()
	l := s.logger
	s.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentUIBridge
	}
	l.Log(entry)
}

// Package ws accepts WebSocket connections and pumps JSON records between
// each socket and the session handler.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/config"
	"github.com/cory-johannsen/roomsync/internal/observability"
	"github.com/cory-johannsen/roomsync/internal/session"
)

// Handler receives connection lifecycle events and inbound payloads.
// OnMessage calls for one connection are never concurrent.
type Handler interface {
	OnConnect(conn session.Conn) (session.Session, error)
	OnMessage(conn session.Conn, data []byte)
	OnDisconnect(conn session.Conn)
}

// Server upgrades HTTP requests to WebSocket clients.
type Server struct {
	handler  Handler
	cfg      config.TransportConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// NewServer creates a Server.
//
// Precondition: handler and logger must be non-nil.
func NewServer(handler Handler, cfg config.TransportConfig, logger *zap.Logger) *Server {
	return &Server{
		handler: handler,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, s.cfg, s.logger)
	sess, err := s.handler.OnConnect(client)
	if err != nil {
		s.logger.Error("registering connection", zap.Error(err))
		_ = conn.Close()
		return
	}
	client.logger = observability.ForConnection(s.logger, client.RemoteAddr(), sess.ID)

	s.track(client)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.untrack(client)
		client.readPump(s.handler)
	}()
	client.logger.Info("connection opened")
}

// Connections returns the number of open clients.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes every open client and waits for their pumps to exit.
//
// Postcondition: OnDisconnect has run for every client.
func (s *Server) Shutdown() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	s.wg.Wait()
}

func (s *Server) track(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) untrack(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

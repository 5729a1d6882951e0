// Package server accepts websocket connections and feeds their frames to
// the coordinator. One goroutine per connection direction, a global
// connection-count semaphore, and a heartbeat ping ticker.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/coordinator"
	"github.com/peercode-live/peercode-go-collab-server/internal/event"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
)

var sem = make(chan struct{}, 10000)

type Server struct {
	hub         *Hub
	coordinator *coordinator.Coordinator
	httpServer  *http.Server

	heartbeatInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(hub *Hub, coord *coordinator.Coordinator, heartbeatInterval time.Duration) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		hub:               hub,
		coordinator:       coord,
		heartbeatInterval: heartbeatInterval,
		ctx:               ctx,
		cancel:            cancel,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.WarnF("Fail to accept websocket connection from %s, details: %v", r.RemoteAddr, err)
		return
	}

	select {
	case sem <- struct{}{}:
	default:
		logger.WarnF("Connection limit reached, rejecting %s", r.RemoteAddr)
		_ = wsConn.Close(websocket.StatusTryAgainLater, "server is full")
		return
	}

	conn := NewConnection(s.ctx, wsConn,
		func(ctx context.Context, connID uuid.UUID, message []byte) {
			s.coordinator.HandleMessage(ctx, connID, message)
		},
		func(connID uuid.UUID) {
			// leave runs against the store before the hub entry goes away
			s.coordinator.HandleDisconnect(context.Background(), connID)
			s.hub.RemoveConnection(connID)
			<-sem
		},
	)

	logger.DebugF("Accepted new connection from %s", r.RemoteAddr)
	s.hub.AddConnection(conn)
	s.coordinator.HandleConnect(conn.ID())
	conn.Run()
}

// startHeartbeat pings every live connection on a fixed interval. Missed
// pongs never evict a connection; the ping only feeds client-side
// liveness displays.
func (s *Server) startHeartbeat() {
	frame, err := protocol.Encode(protocol.EventHeartbeatPing, nil)
	if err != nil {
		logger.ErrorF("Fail to encode heartbeat ping, details: %v", err)
		return
	}

	ticker := time.NewTicker(s.heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.hub.Broadcast(frame)
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

type serverCloseCallback struct {
	server *Server
}

func (sc *serverCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing websocket server")
	sc.server.cancel()
	sc.server.hub.CloseAll()
	return sc.server.httpServer.Shutdown(ctx)
}

// Start blocks serving websocket upgrades on /ws until shutdown.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("server start error: %w", err)
	}
	logger.InfoF("Collab server listen on %s", ln.Addr().String())

	event.NewCleaner().Add(&serverCloseCallback{server: s})
	s.startHeartbeat()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

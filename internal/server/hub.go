package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
)

// Hub tracks every live transport connection. It implements the
// coordinator's Sender so broadcasts resolve connection ids to sockets
// without the coordinator ever touching transport state.
type Hub struct {
	connections sync.Map
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) AddConnection(conn *Connection) {
	h.connections.Store(conn.ID(), conn)
	logger.InfoF("[%s] Client connected", conn.ID())
}

func (h *Hub) RemoveConnection(connID uuid.UUID) {
	h.connections.Delete(connID)
	logger.InfoF("[%s] Client disconnected", connID)
}

func (h *Hub) GetConnection(connID uuid.UUID) (*Connection, bool) {
	if value, ok := h.connections.Load(connID); ok {
		return value.(*Connection), true
	}
	return nil, false
}

// Send queues a frame to one connection; unknown ids are ignored, the
// connection may have closed between room snapshot and delivery.
func (h *Hub) Send(connID uuid.UUID, message []byte) {
	conn, ok := h.GetConnection(connID)
	if !ok {
		return
	}
	conn.Send(message)
}

// Broadcast queues a frame to every live connection.
func (h *Hub) Broadcast(message []byte) {
	h.connections.Range(func(_, value any) bool {
		value.(*Connection).Send(message)
		return true
	})
}

func (h *Hub) Count() int {
	count := 0
	h.connections.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// CloseAll tears down every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.connections.Range(func(_, value any) bool {
		value.(*Connection).Close()
		return true
	})
}

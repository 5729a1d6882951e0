package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
)

const (
	sendBufferSize = 256
	maxFrameSize   = 1 << 20 // 1 MiB
)

// MessageHandler is invoked for every inbound text frame.
type MessageHandler func(ctx context.Context, connID uuid.UUID, message []byte)

// CloseHandler is invoked exactly once when the connection terminates.
type CloseHandler func(connID uuid.UUID)

// Connection wraps one websocket with a buffered outbound channel so
// callers never block on a slow client. Reads and writes each run on
// their own goroutine; either failing tears the whole connection down.
type Connection struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte

	onMessage MessageHandler
	onClose   CloseHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewConnection(parentCtx context.Context, conn *websocket.Conn, onMessage MessageHandler, onClose CloseHandler) *Connection {
	connCtx, cancel := context.WithCancel(parentCtx)
	return &Connection{
		id:        uuid.New(),
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		onMessage: onMessage,
		onClose:   onClose,
		ctx:       connCtx,
		cancel:    cancel,
	}
}

func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) Run() {
	c.conn.SetReadLimit(maxFrameSize)
	go c.writePump()
	c.readPump()
}

func (c *Connection) readPump() {
	defer c.Close()

	for {
		typ, r, err := c.conn.Reader(c.ctx)
		if err != nil {
			handleReadError(c.id, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		message, err := io.ReadAll(r)
		if err != nil {
			handleReadError(c.id, err)
			return
		}
		c.onMessage(c.ctx, c.id, message)
	}
}

func (c *Connection) writePump() {
	defer c.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.WarnF("[%s] Fail to send data, details: %v", c.id, err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a frame; a closed connection drops it silently.
func (c *Connection) Send(message []byte) {
	select {
	case c.send <- message:
	case <-c.ctx.Done():
		logger.DebugF("[%s] Dropping frame for closed connection", c.id)
	default:
		logger.WarnF("[%s] Send buffer full, dropping frame", c.id)
	}
}

func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		logger.DebugF("[%s] Connection closed", c.id)
		if c.onClose != nil {
			c.onClose(c.id)
		}
	})
}

func handleReadError(connID uuid.UUID, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		logger.DebugF("[%s] Read loop stopped", connID)
		return
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		logger.InfoF("[%s] Client close connection", connID)
	case -1:
		logger.ErrorF("[%s] Error occured while reading frame, details: %v", connID, err)
	default:
		logger.WarnF("[%s] Connection closed with status %v", connID, websocket.CloseStatus(err))
	}
}

package realtime

import (
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Socket is the transport surface a connection reads from and writes to.
// Close may be called concurrently with ReadMessage.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// State is the lifecycle position of a connection.
type State int32

const (
	StatePending State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Connection is one live realtime client. Its send channel is closed only by
// the registry goroutine, which is the sole owner of live membership.
type Connection struct {
	id       string
	socket   Socket
	send     chan []byte
	state    atomic.Int32
	registry *Registry
	done     chan struct{}
	logger   *zap.Logger
}

// NewConnection wraps socket in a pending connection bound to this registry.
// label identifies the remote party in broadcast messages.
func (r *Registry) NewConnection(socket Socket, label string) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:       id,
		socket:   socket,
		send:     make(chan []byte, r.opts.SendBuffer),
		registry: r,
		done:     make(chan struct{}),
		logger:   r.logger.With(zap.String("conn_id", id), zap.String("label", label)),
	}
}

// State reports the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// writeLoop drains the send queue onto the socket until the registry closes
// the queue, then closes the socket so the reader unblocks.
func (c *Connection) writeLoop() {
	defer close(c.done)
	defer c.socket.Close() //nolint:errcheck

	failed := false
	for msg := range c.send {
		if failed {
			continue
		}
		_ = c.socket.SetWriteDeadline(time.Now().Add(c.registry.opts.WriteTimeout))
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			failed = true
			_ = c.socket.Close()
			if c.State() != StateClosed {
				c.registry.deliveryFailed(c, err)
			}
		}
	}

	if !failed {
		_ = c.socket.SetWriteDeadline(time.Now().Add(c.registry.opts.WriteTimeout))
		_ = c.socket.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

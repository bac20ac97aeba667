package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultSendBuffer   = 256
	DefaultWriteTimeout = 10 * time.Second
)

// Recorder observes registry activity.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageBroadcast(recipients int)
	DeliveryFailed()
}

type nopRecorder struct{}

func (nopRecorder) ConnectionOpened()    {}
func (nopRecorder) ConnectionClosed()    {}
func (nopRecorder) MessageBroadcast(int) {}
func (nopRecorder) DeliveryFailed()      {}

// Options tunes a Registry.
type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Recorder     Recorder
}

// Registry tracks live connections and fans messages out to them. The live set
// is owned by the goroutine executing Run; every membership change, broadcast
// and count is a message to that goroutine.
type Registry struct {
	opts     Options
	logger   *zap.Logger
	recorder Recorder

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	count      chan chan int
	done       chan struct{}
	running    atomic.Bool
}

// NewRegistry builds a registry. Call Run to start serving it.
func NewRegistry(opts Options) *Registry {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Registry{
		opts:       opts,
		logger:     logger.Named("realtime"),
		recorder:   recorder,
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run owns the live set until ctx is cancelled, then closes every remaining
// connection. It must be called exactly once.
func (r *Registry) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("connection registry already running")
	}
	defer close(r.done)

	live := make(map[*Connection]struct{})

	for {
		select {
		case <-ctx.Done():
			for c := range live {
				r.remove(live, c)
			}
			r.logger.Info("connection registry stopped")
			return nil

		case c := <-r.register:
			live[c] = struct{}{}
			r.recorder.ConnectionOpened()
			go c.writeLoop()
			c.logger.Debug("connection registered", zap.Int("live", len(live)))

		case c := <-r.unregister:
			if _, ok := live[c]; ok {
				r.remove(live, c)
				c.logger.Debug("connection unregistered", zap.Int("live", len(live)))
			}

		case msg := <-r.broadcast:
			delivered := 0
			for c := range live {
				select {
				case c.send <- msg:
					delivered++
				default:
					r.logDeliveryError(c, ErrSendBufferFull)
					r.remove(live, c)
					_ = c.socket.Close()
				}
			}
			r.recorder.MessageBroadcast(delivered)

		case reply := <-r.count:
			reply <- len(live)
		}
	}
}

func (r *Registry) remove(live map[*Connection]struct{}, c *Connection) {
	delete(live, c)
	c.state.Store(int32(StateClosed))
	close(c.send)
	r.recorder.ConnectionClosed()
}

// Connect admits a pending connection into the live set. Once Connect returns
// nil, every later broadcast reaches the connection until it is removed.
func (r *Registry) Connect(c *Connection) error {
	if !c.transition(StatePending, StateActive) {
		return ErrAlreadyConnected
	}
	select {
	case r.register <- c:
		return nil
	case <-r.done:
		c.state.Store(int32(StateClosed))
		return ErrRegistryClosed
	}
}

// Disconnect removes c from the live set. Removing an absent connection is a no-op.
func (r *Registry) Disconnect(c *Connection) {
	if c == nil {
		return
	}
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Broadcast queues msg for every connection live at the time the registry
// processes it. Per-connection failures evict that connection and are not returned.
func (r *Registry) Broadcast(msg []byte) {
	select {
	case r.broadcast <- msg:
	case <-r.done:
	}
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	reply := make(chan int, 1)
	select {
	case r.count <- reply:
		return <-reply
	case <-r.done:
		return 0
	}
}

// Done is closed once Run has returned. Connections left at shutdown have had
// their queues closed by then.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

func (r *Registry) deliveryFailed(c *Connection, err error) {
	r.logDeliveryError(c, err)
	r.Disconnect(c)
}

func (r *Registry) logDeliveryError(c *Connection, err error) {
	r.recorder.DeliveryFailed()
	c.logger.Warn("evicting connection", zap.Error(&DeliveryError{ConnID: c.id, Err: err}))
}

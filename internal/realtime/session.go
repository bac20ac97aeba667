package realtime

import (
	"errors"
	"fmt"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

// FormatMessage renders a chat line as delivered to every participant.
func FormatMessage(label, text string) []byte {
	return []byte(fmt.Sprintf("User %s says: %s", label, text))
}

// Serve runs the session protocol for one socket: admit it, broadcast each
// inbound text frame prefixed with label, and on disconnect remove it exactly
// once. A client closing the channel is a normal outcome and returns nil.
func (r *Registry) Serve(socket Socket, label string) error {
	c := r.NewConnection(socket, label)
	if err := r.Connect(c); err != nil {
		_ = socket.Close()
		return err
	}
	defer func() {
		r.Disconnect(c)
		<-c.done
	}()

	for {
		messageType, payload, err := socket.ReadMessage()
		if err != nil {
			r.logReadEnd(c, err)
			return nil
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", zap.Int("type", messageType))
			continue
		}
		r.Broadcast(FormatMessage(label, string(payload)))
	}
}

func (r *Registry) logReadEnd(c *Connection, err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug("client closed connection")
	case c.State() == StateClosed, errors.Is(err, websocket.ErrCloseSent):
		c.logger.Debug("connection closed by server")
	default:
		c.logger.Info("connection read ended", zap.Error(err))
	}
}

package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrRegistryClosed is returned by Connect once the registry has shut down.
	ErrRegistryClosed = errors.New("connection registry closed")
	// ErrAlreadyConnected is returned when a connection is admitted twice.
	ErrAlreadyConnected = errors.New("connection already admitted")
	// ErrSendBufferFull reports a recipient whose outbound queue is saturated.
	ErrSendBufferFull = errors.New("send buffer full")
)

// DeliveryError records a failed delivery to one connection. It is logged and
// triggers eviction of that connection; it never reaches the broadcaster.
type DeliveryError struct {
	ConnID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to connection %s: %v", e.ConnID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

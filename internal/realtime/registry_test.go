package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type frame struct {
	kind    int
	payload []byte
}

type fakeSocket struct {
	inbound   chan frame
	received  chan string
	closed    chan struct{}
	closeOnce sync.Once
	gate      chan struct{}
	failWrite bool
	closeSent atomic.Bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound:  make(chan frame, 16),
		received: make(chan string, 1024),
		closed:   make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-s.inbound:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return f.kind, f.payload, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(kind int, data []byte) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	if kind == websocket.CloseMessage {
		s.closeSent.Store(true)
		return nil
	}
	if s.failWrite {
		return errors.New("broken pipe")
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-s.closed:
			return net.ErrClosed
		}
	}
	s.received <- string(data)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) send(text string) {
	s.inbound <- frame{kind: websocket.TextMessage, payload: []byte(text)}
}

func (s *fakeSocket) hangUp() {
	close(s.inbound)
}

func (s *fakeSocket) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-s.received:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (s *fakeSocket) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case got := <-s.received:
		t.Fatalf("unexpected message %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type countingRecorder struct {
	opened, closed, failed atomic.Int64
}

func (r *countingRecorder) ConnectionOpened()    { r.opened.Add(1) }
func (r *countingRecorder) ConnectionClosed()    { r.closed.Add(1) }
func (r *countingRecorder) MessageBroadcast(int) {}
func (r *countingRecorder) DeliveryFailed()      { r.failed.Add(1) }

func startRegistry(t *testing.T, opts Options) (*Registry, context.CancelFunc) {
	t.Helper()
	reg := NewRegistry(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = reg.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-reg.Done()
	})
	return reg, cancel
}

func TestRegistry_ConnectBroadcastDisconnect(t *testing.T) {
	reg, _ := startRegistry(t, Options{})

	sa, sb := newFakeSocket(), newFakeSocket()
	a, b := reg.NewConnection(sa, "1"), reg.NewConnection(sb, "2")
	require.Equal(t, StatePending, a.State())

	require.NoError(t, reg.Connect(a))
	require.NoError(t, reg.Connect(b))
	assert.Equal(t, StateActive, a.State())
	assert.Equal(t, 2, reg.Count())

	reg.Broadcast([]byte("m"))
	sa.expect(t, "m")
	sb.expect(t, "m")

	reg.Disconnect(a)
	<-a.done
	assert.Equal(t, StateClosed, a.State())
	assert.True(t, sa.closeSent.Load())

	reg.Broadcast([]byte("m2"))
	sb.expect(t, "m2")
	sa.expectNothing(t)
	assert.Equal(t, 1, reg.Count())

	reg.Disconnect(b)
	<-b.done
}

func TestRegistry_DisconnectIsIdempotent(t *testing.T) {
	reg, _ := startRegistry(t, Options{})

	c := reg.NewConnection(newFakeSocket(), "1")
	require.NoError(t, reg.Connect(c))

	reg.Disconnect(c)
	reg.Disconnect(c)
	reg.Disconnect(reg.NewConnection(newFakeSocket(), "never-connected"))
	reg.Disconnect(nil)
	<-c.done

	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_ConnectRules(t *testing.T) {
	reg, cancel := startRegistry(t, Options{})

	c := reg.NewConnection(newFakeSocket(), "1")
	require.NoError(t, reg.Connect(c))
	assert.ErrorIs(t, reg.Connect(c), ErrAlreadyConnected)

	cancel()
	<-reg.Done()
	<-c.done
	assert.Equal(t, StateClosed, c.State())

	late := reg.NewConnection(newFakeSocket(), "2")
	assert.ErrorIs(t, reg.Connect(late), ErrRegistryClosed)
	assert.Equal(t, StateClosed, late.State())
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_SlowClientIsEvicted(t *testing.T) {
	rec := &countingRecorder{}
	reg, _ := startRegistry(t, Options{SendBuffer: 1, Recorder: rec})

	slowSocket := newFakeSocket()
	slowSocket.gate = make(chan struct{})
	fastSocket := newFakeSocket()

	slow := reg.NewConnection(slowSocket, "slow")
	fast := reg.NewConnection(fastSocket, "fast")
	require.NoError(t, reg.Connect(slow))
	require.NoError(t, reg.Connect(fast))

	for i := 0; i < 4; i++ {
		reg.Broadcast([]byte(fmt.Sprintf("m%d", i)))
		fastSocket.expect(t, fmt.Sprintf("m%d", i))
	}

	require.Eventually(t, func() bool { return reg.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	<-slow.done
	assert.Equal(t, StateClosed, slow.State())
	assert.EqualValues(t, 1, rec.failed.Load())

	reg.Disconnect(fast)
	<-fast.done
}

func TestRegistry_WriteFailureIsEvicted(t *testing.T) {
	rec := &countingRecorder{}
	reg, _ := startRegistry(t, Options{Recorder: rec})

	broken := newFakeSocket()
	broken.failWrite = true
	healthy := newFakeSocket()

	bc := reg.NewConnection(broken, "broken")
	hc := reg.NewConnection(healthy, "healthy")
	require.NoError(t, reg.Connect(bc))
	require.NoError(t, reg.Connect(hc))

	reg.Broadcast([]byte("hello"))
	healthy.expect(t, "hello")

	<-bc.done
	require.Eventually(t, func() bool { return reg.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, rec.failed.Load())

	reg.Broadcast([]byte("again"))
	healthy.expect(t, "again")

	reg.Disconnect(hc)
	<-hc.done
	assert.EqualValues(t, 2, rec.closed.Load())
}

func TestRegistry_RunTwice(t *testing.T) {
	reg, _ := startRegistry(t, Options{})
	require.Eventually(t, func() bool { return reg.running.Load() }, time.Second, time.Millisecond)
	assert.Error(t, reg.Run(context.Background()))
}

func TestDeliveryError(t *testing.T) {
	err := &DeliveryError{ConnID: "abc", Err: ErrSendBufferFull}
	assert.ErrorIs(t, err, ErrSendBufferFull)
	assert.Equal(t, "deliver to connection abc: send buffer full", err.Error())
}

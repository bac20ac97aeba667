package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(reg *Registry, socket *fakeSocket, label string) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- reg.Serve(socket, label) }()
	return errCh
}

func waitServe(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "User 42 says: hi there", string(FormatMessage("42", "hi there")))
}

func TestServe_BroadcastsToEveryone(t *testing.T) {
	reg, _ := startRegistry(t, Options{})

	alice, bob := newFakeSocket(), newFakeSocket()
	aliceDone := serve(reg, alice, "1")
	bobDone := serve(reg, bob, "2")
	require.Eventually(t, func() bool { return reg.Count() == 2 }, time.Second, 5*time.Millisecond)

	alice.send("hello")
	alice.expect(t, "User 1 says: hello")
	bob.expect(t, "User 1 says: hello")

	alice.inbound <- frame{kind: websocket.BinaryMessage, payload: []byte{0x01}}
	bob.send("hey")
	alice.expect(t, "User 2 says: hey")
	bob.expect(t, "User 2 says: hey")

	alice.hangUp()
	waitServe(t, aliceDone)
	assert.Equal(t, 1, reg.Count())

	bob.send("anyone?")
	bob.expect(t, "User 2 says: anyone?")
	alice.expectNothing(t)

	bob.hangUp()
	waitServe(t, bobDone)
	assert.Equal(t, 0, reg.Count())
}

func TestServe_PreservesPerSenderOrder(t *testing.T) {
	reg, _ := startRegistry(t, Options{SendBuffer: 512})

	sender, listener := newFakeSocket(), newFakeSocket()
	senderDone := serve(reg, sender, "7")
	listenerDone := serve(reg, listener, "8")
	require.Eventually(t, func() bool { return reg.Count() == 2 }, time.Second, 5*time.Millisecond)

	const n = 200
	go func() {
		for i := 0; i < n; i++ {
			sender.send(fmt.Sprintf("%d", i))
		}
	}()
	for i := 0; i < n; i++ {
		listener.expect(t, fmt.Sprintf("User 7 says: %d", i))
	}

	sender.hangUp()
	listener.hangUp()
	waitServe(t, senderDone)
	waitServe(t, listenerDone)
}

func TestServe_ShutdownClosesSessions(t *testing.T) {
	reg, cancel := startRegistry(t, Options{})

	socket := newFakeSocket()
	done := serve(reg, socket, "1")
	require.Eventually(t, func() bool { return reg.Count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	waitServe(t, done)
	assert.True(t, socket.closeSent.Load())

	late := newFakeSocket()
	assert.ErrorIs(t, reg.Serve(late, "2"), ErrRegistryClosed)
	select {
	case <-late.closed:
	default:
		t.Fatal("rejected socket must be closed")
	}
}

func TestServe_ConcurrentStress(t *testing.T) {
	rec := &countingRecorder{}
	reg, _ := startRegistry(t, Options{SendBuffer: 1024, Recorder: rec})

	const n = 64
	sockets := make([]*fakeSocket, n)
	for i := range sockets {
		sockets[i] = newFakeSocket()
		sockets[i].received = make(chan string, 4*n)
	}

	var sessions sync.WaitGroup
	for i, s := range sockets {
		sessions.Add(1)
		go func(label string, s *fakeSocket) {
			defer sessions.Done()
			assert.NoError(t, reg.Serve(s, label))
		}(fmt.Sprintf("%d", i), s)
	}

	var senders sync.WaitGroup
	for i, s := range sockets {
		senders.Add(1)
		go func(i int, s *fakeSocket) {
			defer senders.Done()
			s.send(fmt.Sprintf("ping-%d", i))
			reg.Broadcast([]byte(fmt.Sprintf("direct-%d", i)))
		}(i, s)
	}
	senders.Wait()

	var closers sync.WaitGroup
	for _, s := range sockets {
		closers.Add(1)
		go func(s *fakeSocket) {
			defer closers.Done()
			s.hangUp()
		}(s)
	}
	closers.Wait()

	finished := make(chan struct{})
	go func() {
		sessions.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("sessions did not terminate")
	}

	assert.Equal(t, 0, reg.Count())
	assert.EqualValues(t, n, rec.opened.Load())
	assert.EqualValues(t, n, rec.closed.Load())
	assert.Zero(t, rec.failed.Load())

	for _, s := range sockets {
		seen := make(map[string]struct{})
		for len(s.received) > 0 {
			msg := <-s.received
			_, dup := seen[msg]
			assert.False(t, dup, "duplicate delivery of %q", msg)
			seen[msg] = struct{}{}
		}
	}
}

func TestServe_ContextIndependentRegistries(t *testing.T) {
	first, _ := startRegistry(t, Options{})
	second := NewRegistry(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = second.Run(ctx) }()

	a, b := newFakeSocket(), newFakeSocket()
	aDone := serve(first, a, "a")
	bDone := serve(second, b, "b")
	require.Eventually(t, func() bool { return first.Count() == 1 && second.Count() == 1 }, time.Second, 5*time.Millisecond)

	a.send("only first")
	a.expect(t, "User a says: only first")
	b.expectNothing(t)

	cancel()
	<-second.Done()
	waitServe(t, bDone)
	a.hangUp()
	waitServe(t, aDone)
}

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcher_Publish(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventTaskCreated, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.ID)
		return errors.New("boom")
	})
	d.Subscribe(EventTaskCreated, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.ID)
		return nil
	})
	d.Subscribe(EventTaskDeleted, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e1", Type: EventTaskCreated})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"first:e1", "second:e1"}, got)
}

func TestInMemoryDispatcher_NoListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventUserRegistered}))
}

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("handlers receive matching events", func(t *testing.T) {
		dispatcher := NewInMemoryDispatcher()
		var received []Event
		dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, event Event) error {
			received = append(received, event)
			return nil
		})

		require.NoError(t, dispatcher.Publish(ctx, Event{Type: EventTicketCreated, TicketID: "t1"}))
		require.NoError(t, dispatcher.Publish(ctx, Event{Type: EventTicketStatusChanged, TicketID: "t1"}))

		require.Len(t, received, 1)
		assert.Equal(t, "t1", received[0].TicketID)
	})

	t.Run("handler errors are swallowed", func(t *testing.T) {
		dispatcher := NewInMemoryDispatcher()
		calls := 0
		dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, _ Event) error {
			calls++
			return errors.New("boom")
		})
		dispatcher.Subscribe(EventTicketCreated, func(_ context.Context, _ Event) error {
			calls++
			return nil
		})

		require.NoError(t, dispatcher.Publish(ctx, Event{Type: EventTicketCreated}))
		assert.Equal(t, 2, calls)
	})

	t.Run("publishing with no subscribers is a noop", func(t *testing.T) {
		dispatcher := NewInMemoryDispatcher()
		assert.NoError(t, dispatcher.Publish(ctx, Event{Type: EventAssignmentRequested}))
	})
}

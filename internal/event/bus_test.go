package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	second, unsubSecond := bus.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	bus.Publish(New(TypeLoggedOut, "u-1", SessionPayload{Reason: "explicit"}))

	for _, ch := range []<-chan Event{first, second} {
		got := <-ch
		assert.Equal(t, TypeLoggedOut, got.Type)
		assert.Equal(t, "u-1", got.UserID)
		assert.NotEmpty(t, got.ID)
		assert.NotEmpty(t, got.Timestamp)
	}
}

func TestBusUnsubscribeClosesChannelOnce(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(New(TypeCredentialsSet, "", nil))
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		bus.Publish(New(TypeProfileState, "", nil))
	}

	assert.Equal(t, cap(ch), len(ch))
}

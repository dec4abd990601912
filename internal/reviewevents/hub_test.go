package reviewevents

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishAndSubscribe(t *testing.T) {
	hub := NewHub()

	sub, backlog, err := hub.Subscribe("42")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, backlog)

	hub.Publish("42", Event{ParentID: "42", Type: TypeDeliverySubmitted, Version: 1})
	hub.Publish("99", Event{ParentID: "99", Type: TypeDeliverySubmitted, Version: 1})

	got := <-sub.Events()
	assert.Equal(t, TypeDeliverySubmitted, got.Type)
	assert.Equal(t, "42", got.ParentID)

	select {
	case unexpected := <-sub.Events():
		t.Fatalf("received event for another parent: %+v", unexpected)
	default:
	}
}

func TestHub_BacklogReplay(t *testing.T) {
	hub := NewHub()

	hub.Publish("42", Event{ParentID: "42", Type: TypeDeliverySubmitted, Version: 1})
	hub.Publish("42", Event{ParentID: "42", Type: TypeStatusChanged, Status: "in_review_admin"})

	sub, backlog, err := hub.Subscribe("42")
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, backlog, 2)
	assert.Equal(t, TypeDeliverySubmitted, backlog[0].Type)
	assert.Equal(t, TypeStatusChanged, backlog[1].Type)
}

func TestHub_BacklogBounded(t *testing.T) {
	hub := NewHub()

	for i := 0; i < DefaultBufferSize+10; i++ {
		hub.Publish("42", Event{ParentID: "42", Type: TypeDeliverySubmitted, Version: i + 1})
	}

	sub, backlog, err := hub.Subscribe("42")
	require.NoError(t, err)
	defer sub.Close()

	require.Len(t, backlog, DefaultBufferSize)
	assert.Equal(t, 11, backlog[0].Version)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()

	sub, _, err := hub.Subscribe("42")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer*2; i++ {
		hub.Publish("42", Event{ParentID: "42", Version: i + 1})
	}

	received := 0
	for range sub.Events() {
		received++
		if received == DefaultSubscriberBuffer {
			break
		}
	}
	assert.Equal(t, DefaultSubscriberBuffer, received)
}

func TestHub_SubscribeValidation(t *testing.T) {
	hub := NewHub()

	_, _, err := hub.Subscribe("  ")
	assert.Error(t, err)

	var nilHub *Hub
	_, _, err = nilHub.Subscribe("42")
	assert.Error(t, err)
	nilHub.Publish("42", Event{})
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := NewHub()

	subs := make([]*Subscription, 0, 3)
	for i := 0; i < 3; i++ {
		sub, _, err := hub.Subscribe(fmt.Sprintf("%d", i))
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	for _, sub := range subs {
		sub.Close()
		sub.Close()
	}
}

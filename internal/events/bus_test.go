package events

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus := NewBus(hclog.NewNullLogger(), 16)
	bus.Start(context.Background())
	t.Cleanup(bus.Stop)
	return bus
}

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan Event, 1)
	bus.Subscribe(Filter{}, func(event Event) { received <- event })

	bus.Publish(MediaItemAdded, "track://database/1", "payload")

	event := waitFor(t, received)
	assert.Equal(t, MediaItemAdded, event.Type)
	assert.Equal(t, "track://database/1", event.ObjectID)
	assert.Equal(t, "payload", event.Data)
	assert.NotEmpty(t, event.ID)
}

func TestFilterByType(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan Event, 4)
	bus.Subscribe(Filter{Types: []EventType{PlayerChanged}}, func(event Event) { received <- event })

	bus.Publish(MediaItemAdded, "x", nil)
	bus.Publish(PlayerChanged, "player-1", nil)

	event := waitFor(t, received)
	assert.Equal(t, PlayerChanged, event.Type)
	select {
	case extra := <-received:
		t.Fatalf("unexpected extra event %v", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilterByObjectID(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan Event, 4)
	bus.Subscribe(Filter{ObjectIDs: []string{"player-2"}}, func(event Event) { received <- event })

	bus.Publish(PlayerChanged, "player-1", nil)
	bus.Publish(PlayerChanged, "player-2", nil)

	event := waitFor(t, received)
	assert.Equal(t, "player-2", event.ObjectID)
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan Event, 4)
	subID := bus.Subscribe(Filter{}, func(event Event) { received <- event })

	bus.Publish(PlayerAdded, "a", nil)
	waitFor(t, received)

	bus.Unsubscribe(subID)
	bus.Publish(PlayerAdded, "b", nil)
	select {
	case event := <-received:
		t.Fatalf("received event after unsubscribe: %v", event.ObjectID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecentEvents(t *testing.T) {
	bus := newTestBus(t)
	done := make(chan Event, 1)
	bus.Subscribe(Filter{ObjectIDs: []string{"last"}}, func(event Event) { done <- event })

	bus.Publish(MediaItemUpdated, "first", nil)
	bus.Publish(MediaItemUpdated, "last", nil)
	waitFor(t, done)

	recent := bus.RecentEvents()
	require.Len(t, recent, 2)
	assert.Equal(t, "first", recent[0].ObjectID)
	assert.Equal(t, "last", recent[1].ObjectID)
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan Event, 1)
	bus.Subscribe(Filter{}, func(Event) { panic("boom") })
	bus.Subscribe(Filter{ObjectIDs: []string{"after"}}, func(event Event) { received <- event })

	bus.Publish(PlayerChanged, "before", nil)
	bus.Publish(PlayerChanged, "after", nil)
	waitFor(t, received)
}

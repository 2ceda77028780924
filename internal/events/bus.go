package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const recentEventsKept = 100

// Subscription is one registered listener on the bus.
type Subscription struct {
	ID      string
	Filter  Filter
	Handler Handler
	Created time.Time
}

// Bus is a channel-backed event bus. Delivery is FIFO per subscriber and
// handlers run sequentially from the bus loop, so handlers must not block
// on bus operations of their own.
type Bus struct {
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	recentEvents  []Event
	running       bool

	eventCh chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewBus creates a bus with the given channel buffer size.
func NewBus(logger hclog.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &Bus{
		logger:        logger,
		subscriptions: make(map[string]*Subscription),
		recentEvents:  make([]Event, 0, recentEventsKept),
		eventCh:       make(chan Event, bufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.processEvents(ctx)
	b.logger.Debug("event bus started", "buffer_size", cap(b.eventCh))
}

// Stop drains the loop and waits for it to finish.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	b.logger.Debug("event bus stopped")
}

// Publish queues an event for delivery. When the buffer is full the event
// is dropped with a warning rather than blocking the caller.
func (b *Bus) Publish(eventType EventType, objectID string, data any) {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return
	}
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ObjectID:  objectID,
		Timestamp: time.Now(),
		Data:      data,
	}
	select {
	case b.eventCh <- event:
	default:
		b.logger.Warn("event channel full, dropping event", "type", event.Type, "object_id", event.ObjectID)
	}
}

// Subscribe registers a handler for events matching the filter and returns
// the subscription id.
func (b *Bus) Subscribe(filter Filter, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{
		ID:      uuid.NewString(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	b.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, subscriptionID)
}

// RecentEvents returns a copy of the last events seen on the bus.
func (b *Bus) RecentEvents() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.recentEvents))
	copy(out, b.recentEvents)
	return out
}

func (b *Bus) processEvents(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case event := <-b.eventCh:
			b.handleEvent(event)
		}
	}
}

func (b *Bus) handleEvent(event Event) {
	b.mu.Lock()
	b.recentEvents = append(b.recentEvents, event)
	if len(b.recentEvents) > recentEventsKept {
		b.recentEvents = b.recentEvents[1:]
	}
	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.Filter.Matches(event) {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.notify(sub, event)
	}
}

func (b *Bus) notify(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", "subscription_id", sub.ID, "error", r, "event_type", event.Type)
		}
	}()
	sub.Handler(event)
}

package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(PoseUpdatedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ImageUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case DepthUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case MarkersUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case PoseUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case ConnectionEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type selects which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e MarkersUpdatedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ImageUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DepthUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MarkersUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PoseUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConnectionEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}


// SubscribeToChannel forwards events of type T into ch without blocking the
// publisher. Events that do not fit are dropped.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll forwards every event type into ch. The returned function
// removes all of the subscriptions.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[ImageUpdatedEvent](bus, ch),
		SubscribeToChannel[DepthUpdatedEvent](bus, ch),
		SubscribeToChannel[MarkersUpdatedEvent](bus, ch),
		SubscribeToChannel[PoseUpdatedEvent](bus, ch),
		SubscribeToChannel[ConnectionEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

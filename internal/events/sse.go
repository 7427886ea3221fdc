package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeCaptureEvents forwards every session lifecycle event to ch.
// The returned function removes all of the subscriptions.
func SubscribeCaptureEvents(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[CaptureStartedEvent](bus, ch),
		SubscribeToChannel[CaptureStoppedEvent](bus, ch),
		SubscribeToChannel[CaptureFailedEvent](bus, ch),
		SubscribeToChannel[CaptureExitedEvent](bus, ch),
		SubscribeToChannel[ProtectedProcessEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

package runtime_test

import (
	"chat-presence/domain/event"
	"chat-presence/sink"
)

// drain returns every event queued on conn without blocking.
func drain(conn *sink.ConnectionSink) []event.DomainEvent {
	var events []event.DomainEvent
	for {
		select {
		case e := <-conn.Events:
			events = append(events, e)
		default:
			return events
		}
	}
}

// Package broker fans newly created messages out to live subscribers of a
// room. Delivery is best-effort and at-most-once per subscriber: there is no
// buffering, retry or durable queue, and late subscribers must fetch history
// from the message store.
package broker

import (
	"github.com/travelbuddy/internal/model"
)

type EventType string

const (
	EventNewMessage EventType = "new_message"
)

// Event is what subscribers receive on publish.
type Event struct {
	Type    EventType      `json:"type"`
	RoomID  string         `json:"room_id"`
	Message *model.Message `json:"message,omitempty"`
}

// Subscriber is one live connection. Deliver must not block: implementations
// drop or disconnect on a full buffer rather than stall the publisher.
type Subscriber interface {
	Deliver(ev Event) error
}

// Broker is a topic-per-room publish/subscribe table.
type Broker interface {
	// Subscribe registers sub for the room's topic; subscribing twice is a no-op.
	Subscribe(roomID string, sub Subscriber)
	// Unsubscribe removes the registration; unknown registrations are a no-op.
	Unsubscribe(roomID string, sub Subscriber)
	// Publish delivers ev to every subscriber registered at the moment of the
	// call. Individual delivery failures are swallowed.
	Publish(roomID string, ev Event)
	// Drop removes sub from every topic (transport disconnect).
	Drop(sub Subscriber)
}

package ws

import "github.com/travelbuddy/internal/broker"

type EventType string

const (
	// Client to server.
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"

	// Server to client.
	EventNewMessage EventType = "new_message"
	EventJoinedRoom EventType = "joined_room"
	EventLeftRoom   EventType = "left_room"
	EventError      EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	Content string    `json:"content,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed values to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// RoomPayload acknowledges join_room / leave_room.
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

// ErrorPayload carries a user-facing failure reason.
type ErrorPayload struct {
	RoomID string `json:"room_id,omitempty"`
	Reason string `json:"reason"`
}

// outgoingFromEvent translates a broker event into the wire shape.
func outgoingFromEvent(ev broker.Event) OutgoingMessage {
	switch ev.Type {
	case broker.EventNewMessage:
		return OutgoingMessage{Type: EventNewMessage, Payload: ev.Message}
	default:
		return OutgoingMessage{Type: EventType(ev.Type), Payload: nil}
	}
}

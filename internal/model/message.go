package model

import "time"

// Message is immutable once created. Seq is assigned by the store and gives
// a total order within a room even when timestamps collide.
type Message struct {
	ID        string      `json:"id"`
	Seq       int64       `json:"seq"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    *UserPublic `json:"sender,omitempty"`
}

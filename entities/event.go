package entities

import (
	"encoding/json"
	"time"
)

type EventKind string

const (
	EventMessage       EventKind = "message"
	EventFriendRequest EventKind = "friend-request"
	EventFriendAccept  EventKind = "friend-accept"
)

// Payload is plaintext JSON; the recipient's connection encrypts it under
// its own session secret right before the websocket write.
type PushEvent struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type QueuedFriendEvent struct {
	ID        uint64    `db:"id"`
	Recipient string    `db:"recipient"`
	Kind      string    `db:"kind"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

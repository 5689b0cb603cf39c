package roomevents

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a room lifecycle transition.
type EventType string

const (
	EventTypeRoomCreated  EventType = "room_created"
	EventTypeMemberJoined EventType = "member_joined"
	EventTypeMemberLeft   EventType = "member_left"
	EventTypeOwnerChanged EventType = "owner_changed"
	EventTypeRoomDeleted  EventType = "room_deleted"
)

// RoomEvent is the envelope handed to the event backends.
type RoomEvent struct {
	ID           uuid.UUID `json:"eventId"`
	Type         EventType `json:"eventType"`
	RoomName     string    `json:"roomName"`
	ConnectionID string    `json:"connectionId,omitempty"`
	OwnerID      string    `json:"ownerId,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Marshal encodes the event envelope.
func (e RoomEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Topic joins a backend prefix with the event type, e.g. "tzroom.events.room_created".
func (e RoomEvent) Topic(prefix, sep string) string {
	return prefix + sep + string(e.Type)
}

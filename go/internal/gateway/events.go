package gateway

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope used in both directions on the socket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeMessage marshals an outbound event. A nil data value produces an
// envelope without a data field.
func EncodeMessage(event string, data interface{}) ([]byte, error) {
	msg := Message{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// GroupEventKind is the kind of group membership change
type GroupEventKind int

const (
	GroupJoined GroupEventKind = iota
	GroupLeft
	GroupDeleted
)

func (k GroupEventKind) String() string {
	switch k {
	case GroupJoined:
		return "joined"
	case GroupLeft:
		return "left"
	case GroupDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// GroupEvent reports a membership change. ConnID is empty for GroupDeleted.
type GroupEvent struct {
	Kind   GroupEventKind
	Group  string
	ConnID string
}

// Handler receives connection lifecycle callbacks. Every method is invoked on
// the connection manager's event loop, one at a time.
type Handler interface {
	OnConnect(connID string)
	OnMessage(connID string, msg Message)
	OnDisconnect(connID string)
	OnGroupEvent(event GroupEvent)
}

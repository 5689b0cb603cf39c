package tzroom

import "encoding/json"

// Inbound events
const (
	EventCreateRoom      = "timezoneRoom:create"
	EventJoinRoom        = "timezoneRoom:join"
	EventLeaveRoom       = "timezoneRoom:leave"
	EventDateForUpdate   = "dateForUpdate"
	EventTimezoneChanged = "timezoneChanged"
)

// Outbound events
const (
	EventWelcome            = "welcome"
	EventFetchTimezones     = "fetchTimezones"
	EventCreateResult       = "timezoneRoom:create:result"
	EventJoinResult         = "timezoneRoom:join:result"
	EventLeaveResult        = "timezoneRoom:leave:result"
	EventUserLeft           = "timezoneRoom:userLeft"
	EventNewUserJoined      = "timezoneRoom:newUserJoined"
	EventRequestDateInfo    = "requestDateInfo"
	EventDatetimeOfTimezone = "datetimeOfTimezone"
)

type CreateResult struct {
	Message  string `json:"message"`
	Success  bool   `json:"success"`
	RoomName string `json:"roomName,omitempty"`
	OwnerID  string `json:"ownerId,omitempty"`
}

type JoinResult struct {
	Message   string   `json:"message"`
	Success   bool     `json:"success"`
	RoomName  string   `json:"roomName,omitempty"`
	MemberIDs []string `json:"memberIds,omitempty"`
	OwnerID   string   `json:"ownerId,omitempty"`
}

type LeaveResult struct {
	Message  string `json:"message"`
	Success  bool   `json:"success"`
	RoomName string `json:"roomName,omitempty"`
}

type UserLeft struct {
	RoomName   string   `json:"roomName"`
	MemberIDs  []string `json:"memberIds"`
	NewOwnerID string   `json:"newOwnerId"`
}

type NewUserJoined struct {
	RoomName  string   `json:"roomName"`
	MemberIDs []string `json:"memberIds"`
}

type DatetimeOfTimezone struct {
	Datetime         string `json:"datetime"`
	SelectedTimezone string `json:"selectedTimezone"`
	Error            string `json:"error,omitempty"`
}

type FetchTimezones struct {
	Message   string   `json:"message"`
	Timezones []string `json:"timezones"`
}

// DatetimeRequest is the payload of dateForUpdate and timezoneChanged.
type DatetimeRequest struct {
	SelectedTimezone   string `json:"selectedTimezone"`
	OwnerLocalDatetime string `json:"ownerLocalDatetime,omitempty"`
}

// decodeRoomName accepts "name" or {"roomName": "name"}.
func decodeRoomName(data json.RawMessage) string {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name
	}
	var payload struct {
		RoomName string `json:"roomName"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		return payload.RoomName
	}
	return ""
}

// decodeDatetimeRequest accepts "tz", ["tz", "local datetime"] or a
// DatetimeRequest object.
func decodeDatetimeRequest(data json.RawMessage) DatetimeRequest {
	var req DatetimeRequest

	var timezone string
	if err := json.Unmarshal(data, &timezone); err == nil {
		req.SelectedTimezone = timezone
		return req
	}

	var args []string
	if err := json.Unmarshal(data, &args); err == nil {
		if len(args) > 0 {
			req.SelectedTimezone = args[0]
		}
		if len(args) > 1 {
			req.OwnerLocalDatetime = args[1]
		}
		return req
	}

	_ = json.Unmarshal(data, &req)
	return req
}

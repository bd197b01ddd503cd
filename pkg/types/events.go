package types

// Socket wire format.
//
// Client -> Server
// Profile: sent once as the first frame after connect; authenticates the
// subscription.
//
// Server -> Client
// EventMessage: one envelope for the three event kinds. Unused fields are
// omitted per kind:
//   session-status-changed:    sessionId, status
//   participant-count-updated: roomId, count
//   room-will-be-deleted:      roomId, message

const (
	EventSessionStatusChanged    = "session-status-changed"
	EventParticipantCountUpdated = "participant-count-updated"
	EventRoomWillBeDeleted       = "room-will-be-deleted"
)

type Profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
}

type EventMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Status    string `json:"status,omitempty"`
	Count     int    `json:"count,omitempty"`
	Message   string `json:"message,omitempty"`
}

package directory

import (
	"github.com/Kahyberth/taskmate-rooms/pkg/types"
)

// Room is the client-side projection of a poker session. The server is
// the source of truth; fields are patched in place by socket events
// between directory fetches.
type Room struct {
	ID                  string
	Name                string
	Host                types.Host
	Capacity            int
	CurrentParticipants int
	Status              string
	CurrentIssue        string
	Duration            string
	Project             string
	HasPassword         bool
}

func roomFromSession(s types.Session) Room {
	return Room{
		ID:           s.ID,
		Name:         s.Name,
		Host:         s.Host,
		Capacity:     s.Capacity,
		Status:       s.Status,
		CurrentIssue: s.CurrentIssue,
		Duration:     s.Duration,
		Project:      s.ProjectName,
		HasPassword:  s.SessionCode != "",
	}
}

package types

// REST records as the taskmate backend returns them.

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TeamID string `json:"team_id"`
}

// Host is the denormalized creator info attached to a session.
type Host struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Session is the raw poker-session record. A non-empty SessionCode means
// the room was created with an access code.
type Session struct {
	ID           string `json:"id"`
	Name         string `json:"session_name"`
	Host         Host   `json:"host"`
	Capacity     int    `json:"participants"`
	Status       string `json:"status"`
	CurrentIssue string `json:"current_issue,omitempty"`
	Duration     string `json:"duration,omitempty"`
	ProjectName  string `json:"project_name,omitempty"`
	SessionCode  string `json:"session_code,omitempty"`
}

type JoinRequest struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	SessionCode string `json:"session_code,omitempty"`
}

type JoinResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

type CreateSessionRequest struct {
	Name       string `json:"session_name"`
	ProjectID  string `json:"project_id"`
	HostID     string `json:"host_id"`
	Capacity   int    `json:"participants"`
	AccessCode string `json:"access_code,omitempty"`
}

// ErrorResponse is the backend's error body. Its message is surfaced to
// the user verbatim.
type ErrorResponse struct {
	Error string `json:"error"`
}

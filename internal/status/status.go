package status

// Badge is the label/color pair a room status renders as.
type Badge struct {
	Label string
	Color string
}

const (
	Live    = "live"
	Waiting = "waiting"
	Closed  = "closed"
	Paused  = "paused"
	Started = "started"
)

var badges = map[string]Badge{
	Live:    {Label: "Live", Color: "green"},
	Waiting: {Label: "Waiting", Color: "yellow"},
	Closed:  {Label: "Closed", Color: "gray"},
	Paused:  {Label: "Paused", Color: "orange"},
	Started: {Label: "Started", Color: "blue"},
}

// Default is returned for any status string outside the known
// vocabulary. The server may ship new statuses before the client knows
// about them, so an unknown value must never break rendering.
var Default = Badge{Label: "Unknown", Color: "slate"}

func Lookup(s string) Badge {
	if b, ok := badges[s]; ok {
		return b
	}
	return Default
}

func Known(s string) bool {
	_, ok := badges[s]
	return ok
}

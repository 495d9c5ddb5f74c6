package reminder

import "time"

// Event is the payload of reminder.* bus events.
type Event struct {
	ID     ID        `json:"id"`
	Owner  int64     `json:"owner"`
	When   time.Time `json:"when"`
	Phase  string    `json:"phase,omitempty"`
	Jobs   int       `json:"jobs,omitempty"`
	Error  string    `json:"error,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

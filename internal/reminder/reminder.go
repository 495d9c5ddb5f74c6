// Package reminder holds the reminder record, its notification phases and
// the in-memory store.
package reminder

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID identifies one logical reminder for its whole lifetime.
type ID string

// NewID returns a fresh random ID.
func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Phase is one of the three notifications sent for a reminder.
type Phase int

const (
	Pre30 Phase = iota
	Pre5
	Exact
)

// Phases lists every phase in firing order.
var Phases = [...]Phase{Pre30, Pre5, Exact}

func (p Phase) String() string {
	switch p {
	case Pre30:
		return "pre30"
	case Pre5:
		return "pre5"
	case Exact:
		return "exact"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Offset is how long before the reminder time the phase fires.
func (p Phase) Offset() time.Duration {
	switch p {
	case Pre30:
		return 30 * time.Minute
	case Pre5:
		return 5 * time.Minute
	default:
		return 0
	}
}

// FireAt returns when the phase fires for a reminder due at when.
func (p Phase) FireAt(when time.Time) time.Time { return when.Add(-p.Offset()) }

// Message renders the notification text for the phase.
func (p Phase) Message(text string) string {
	switch p {
	case Pre30:
		return "❗️in 30 minutes❗️\n" + text
	case Pre5:
		return "❗️in 5 minutes❗️\n" + text
	default:
		return text
	}
}

// Terminal reports whether firing the phase ends the reminder.
func (p Phase) Terminal() bool { return p == Exact }

// JobID names one scheduled phase of a reminder.
type JobID struct {
	Reminder ID
	Phase    Phase
}

func (j JobID) String() string { return j.Reminder.String() + "/" + j.Phase.String() }

// Reminder is one stored reminder. seq keeps creation order among
// reminders due at the same time.
type Reminder struct {
	ID        ID
	Owner     int64
	When      time.Time
	Text      string
	CreatedAt time.Time

	seq uint64
}

package model

import (
	"time"
)

type (
	Status int

	Reminder struct {
		ID        string
		Requester string
		Target    string
		Task      string
		FireAt    time.Time
		CreatedAt time.Time
		Origin    Origin
		Status    Status

		// Set when the platform itself holds the future send.
		ScheduledID      string
		ScheduledChannel string
	}

	// Origin is the conversation a command was issued in.
	Origin struct {
		Channel   string
		ThreadRef string
	}

	RemindCommand struct {
		Requester string
		Target    string
		Task      string
		RawTime   string
	}
)

const (
	StatusPending Status = iota
	StatusFired
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFired:
		return "fired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsSelf reports whether the reminder is addressed to the user who created it.
func (r *Reminder) IsSelf() bool {
	return r.Requester == r.Target
}

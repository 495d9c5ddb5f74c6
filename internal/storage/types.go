package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": jsonl audit + dedup snapshot/journal next to Path
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// An empty Driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	At         time.Time `json:"at"`
	OwnerID    int64     `json:"owner_id"`
	Action     string    `json:"action"`
	ReminderID string    `json:"reminder_id,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	MetaJSON   string    `json:"meta,omitempty"`
}

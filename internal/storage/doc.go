// Package storage is the optional persistence layer: an append-only audit
// trail of reminder lifecycle events and the notifier's dedup windows.
// Reminders themselves are never persisted.
package storage

package reminder

import "errors"

var (
	// ErrInvalidSelection is an out-of-range year, month or day (or empty text).
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrInvalidTimeFormat is clock text that is not HH:MM or HH MM.
	ErrInvalidTimeFormat = errors.New("invalid time format")
	// ErrPastDateTime is a composed timestamp that is not strictly in the future.
	ErrPastDateTime = errors.New("date and time already passed")
	ErrNotFound     = errors.New("reminder not found")
	// ErrDeliveryFailure wraps a failed notification send. The job still retires.
	ErrDeliveryFailure = errors.New("delivery failed")
)

var errIDExhausted = errors.New("reminder id allocation kept colliding")

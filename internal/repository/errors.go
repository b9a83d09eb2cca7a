package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyDecided is returned when a status transition targets a delivery
	// that has already left pending.
	ErrAlreadyDecided = errors.New("delivery already decided")
	// ErrInvalidTransition is returned for status targets other than approved or denied.
	ErrInvalidTransition = errors.New("invalid status transition")
)

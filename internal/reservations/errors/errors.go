package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStateChanged means a compare-and-set transition found the booking in another state.
	ErrStateChanged = errors.New("booking state changed concurrently")

	// ErrNightTaken means a room-night claim already belongs to another active booking.
	ErrNightTaken = errors.New("room night already claimed")
)

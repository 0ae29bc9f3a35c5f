package errors

import "errors"

var (
	ErrCategoryNotFound = errors.New("room category not found")

	ErrRoomNotFound = errors.New("room not found")

	ErrInvalidID = errors.New("invalid inventory ID format")
)

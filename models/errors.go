package models

import "errors"

var (
	// ErrNotFound is returned when a record is absent or belongs to another user.
	ErrNotFound = errors.New("record not found")

	ErrDuplicateEmail = errors.New("email already registered")
)

package model

import "errors"

var (
	// Recycle bin errors
	ErrRecycleEntryNotFound = errors.New("recycle entry not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

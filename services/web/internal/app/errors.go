package app

import "errors"

var (
	// ErrMessageNotFound indicates no record has the requested id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrSearchUnavailable indicates no catalog is configured.
	ErrSearchUnavailable = errors.New("track search unavailable")
)

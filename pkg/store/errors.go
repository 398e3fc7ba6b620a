package store

import "errors"

// ErrNoMedium is returned by writes when the store has no storage medium.
var ErrNoMedium = errors.New("no storage medium available")

// Package catalog looks up songs in a third-party music catalog.
package catalog

import (
	"context"
	"errors"

	"forbias/pkg/domain"
)

// ErrEmptyQuery is returned when a search is attempted with a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Searcher turns a free-text query into track candidates.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Track, error)
}

// APIError represents a non-2xx catalog response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

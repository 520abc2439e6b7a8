package search

import (
	"context"
	"errors"
	"fmt"
)

// Result is one hit returned by a search backend.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Backend is a search vendor.
type Backend interface {
	Name() string
	// HasCredentials reports whether the backend can make live calls.
	HasCredentials() bool
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Options selects the backend and result count for one search.
type Options struct {
	// Backend names a registered backend; empty uses the gateway default.
	Backend    string
	MaxResults int
}

var (
	ErrMissingCredentials = errors.New("search backend credentials missing")
	ErrUnknownBackend     = errors.New("unknown search backend")
)

// SearchError is an unrecoverable failure of a live backend.
type SearchError struct {
	Backend string
	Query   string
	Err     error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %s %q: %v", e.Backend, e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

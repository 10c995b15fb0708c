package scrape

import (
	"errors"
	"fmt"
)

// ErrPageNotFound is returned when the catalog answers 404, which marks the
// end of a paginated category.
var ErrPageNotFound = errors.New("page not found")

// TransportError wraps a network or HTTP-level failure while fetching a
// catalog page.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError wraps a failure to interpret a fetched page as catalog HTML.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

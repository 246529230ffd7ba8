package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity signals an entity tag with no search configuration.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownFacet signals a filter on a field that is not a configured facet.
	ErrUnknownFacet = errors.New("unknown facet")
	// ErrInvalidState signals a search state that violates its own invariants.
	ErrInvalidState = errors.New("invalid search state")
	// ErrInvalidConfig signals a malformed search configuration.
	ErrInvalidConfig = errors.New("invalid search config")
	// ErrCompile signals that a state could not be turned into a backend query.
	ErrCompile = errors.New("query compilation failed")
	// ErrPageOutOfRange signals a page past the backend result window.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrSurfaceNotFound signals a missing mounted search surface.
	ErrSurfaceNotFound = errors.New("surface not found")
	// ErrFacetNotStaged signals a staging operation on a facet that was never opened.
	ErrFacetNotStaged = errors.New("facet not staged")

	// ErrNetwork signals that the search backend could not be reached.
	ErrNetwork = errors.New("search backend unreachable")
	// ErrTimeout signals that the search backend did not answer in time.
	ErrTimeout = errors.New("search backend timed out")
	// ErrClientError signals that the backend rejected the query (4xx).
	ErrClientError = errors.New("search backend rejected query")
	// ErrServerError signals a backend failure (5xx).
	ErrServerError = errors.New("search backend failed")
	// ErrDecode signals a backend response that does not have the expected shape.
	ErrDecode = errors.New("search backend response malformed")
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

// Error kinds.
const (
	KindNetwork ErrorKind = "network"
	KindTimeout ErrorKind = "timeout"
	KindClient  ErrorKind = "client_error"
	KindServer  ErrorKind = "server_error"
	KindDecode  ErrorKind = "decode_error"
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork: ErrNetwork,
	KindTimeout: ErrTimeout,
	KindClient:  ErrClientError,
	KindServer:  ErrServerError,
	KindDecode:  ErrDecode,
}

// SearchError is a classified backend failure.
// errors.Is matches both the kind sentinel and the underlying cause.
type SearchError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// NewSearchError creates a classified backend error.
func NewSearchError(kind ErrorKind, status int, err error) *SearchError {
	return &SearchError{Kind: kind, StatusCode: status, Err: err}
}

func (e *SearchError) Error() string {
	msg := kindSentinels[e.Kind].Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SearchError) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether the failure is transient.
// Client and decode failures are deterministic for a given query.
func (e *SearchError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer:
		return true
	default:
		return false
	}
}

// KindOf returns the kind of a classified backend error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// PageOutOfRangeError wraps ErrPageOutOfRange with the last reachable page.
type PageOutOfRangeError struct {
	Page     int
	LastPage int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: page %d, last reachable page is %d", ErrPageOutOfRange.Error(), e.Page, e.LastPage)
}

func (e *PageOutOfRangeError) Unwrap() error { return ErrPageOutOfRange }

// NewPageOutOfRange creates a page-out-of-range error.
func NewPageOutOfRange(page, lastPage int) error {
	return &PageOutOfRangeError{Page: page, LastPage: lastPage}
}

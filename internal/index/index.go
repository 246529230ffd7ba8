// Package index models the search backend: the bool query wire format,
// the compiler that produces it, and the raw response it answers with.
package index

import "context"

// DefaultWindow is the backend's maximum from+size.
const DefaultWindow = 10000

// Searcher executes a compiled query.
type Searcher interface {
	Execute(ctx context.Context, q *Query) (*RawResponse, error)
}

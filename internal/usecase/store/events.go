package store

import (
	"github.com/mlcatalog/mlsearch/internal/domain/search/result"
	"github.com/mlcatalog/mlsearch/internal/domain/search/state"
)

// Origin tells listeners where a state change came from.
type Origin string

const (
	// OriginUser marks changes made through the view.
	OriginUser Origin = "user-edit"
	// OriginURL marks changes read from the URL; they must never be written back.
	OriginURL Origin = "url-read"
)

// Action names the transition that produced a change.
type Action string

// Transitions.
const (
	ActionSetTerm       Action = "set-term"
	ActionAddFilter     Action = "add-filter"
	ActionRemoveFilter  Action = "remove-filter"
	ActionSetRange      Action = "set-range"
	ActionReplaceFilter Action = "replace-filter"
	ActionSetSort       Action = "set-sort"
	ActionSetPage       Action = "set-page"
	ActionSetPageSize   Action = "set-page-size"
	ActionRestore       Action = "restore"
	ActionReset         Action = "reset"
)

// EventKind distinguishes state changes from applied results.
type EventKind string

const (
	// EventStateChanged fires synchronously after every transition.
	EventStateChanged EventKind = "state-changed"
	// EventResultsApplied fires when a fetch for the current generation settles.
	EventResultsApplied EventKind = "results-applied"
)

// Event is delivered to listeners in transition order, outside the store lock.
type Event struct {
	Kind       EventKind
	Action     Action
	Origin     Origin
	Generation uint64
	State      state.State
}

// Listener receives store events. It must not call back into the store synchronously.
type Listener func(Event)

// Status is the lifecycle of the current generation, derived from the store fields.
type Status string

// Statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Notice is an informational message attached to the current state.
type Notice string

// NoticeCapped is raised when a page request was clamped to the result window.
const NoticeCapped Notice = "capped"

// Snapshot is a consistent view of the store.
type Snapshot struct {
	State      state.State
	Generation uint64
	Status     Status
	// Page is the last successfully applied page. It survives failed refetches.
	Page     *result.Page
	Err      error
	Notice   Notice
	LastPage int
}

package domain

type EventKind string

const (
	EventRunStarted    EventKind = "run_started"
	EventTargetStarted EventKind = "target_started"
	EventStoreLoaded   EventKind = "store_loaded"
	EventPageDone      EventKind = "page_done"
	EventTargetDone    EventKind = "target_done"
	EventInvalidTarget EventKind = "invalid_target"
	EventRunDone       EventKind = "run_done"
)

// Event is a progress notification. Reporters must not block the caller.
type Event struct {
	Kind       EventKind
	Target     string
	Key        string
	Index      int // 1-based position of the target in the run
	Total      int
	Page       int
	Extracted  int
	NewReviews int
	TotalNew   int
	Existing   int
	Status     TargetStatus
	Err        error
}

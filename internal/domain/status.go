package domain

// Status represents the board column a task occupies.
type Status string

const (
	StatusBacklog    Status = "backlog"     // Discovered, awaiting promotion
	StatusReady      Status = "ready"       // Promoted, awaiting an agent slot
	StatusInProgress Status = "in_progress" // Remote session working
	StatusInReview   Status = "in_review"   // PR open, awaiting review and merge
	StatusDone       Status = "done"        // Merged and closed
)

// AllStatuses returns all valid status values in pipeline order.
func AllStatuses() []Status {
	return []Status{
		StatusBacklog,
		StatusReady,
		StatusInProgress,
		StatusInReview,
		StatusDone,
	}
}

// transitions defines the allowed status transitions.
// Forward flow: backlog → ready → in_progress → in_review → done.
//
//	backlog ←──────── in_progress   (session failed / nothing pushed)
//	ready   ←──────── in_review     (review rejected / conflict unresolvable)
//	in_review ←────── in_review     (conflict-resolution session pending)
//
// Every forward edge is additionally gated by the destination column's
// capacity; that gating lives in the use cases, not here.
var transitions = map[Status][]Status{
	StatusBacklog:    {StatusReady},
	StatusReady:      {StatusInProgress},
	StatusInProgress: {StatusInReview, StatusBacklog},
	StatusInReview:   {StatusDone, StatusReady, StatusInReview},
	StatusDone:       {},
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s Status) CanTransitionTo(target Status) bool {
	allowed, ok := transitions[s]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusDone
}

// IsOpen returns true if a task in this status still counts as open work.
// Open titles block re-discovery of the same candidate.
func (s Status) IsOpen() bool {
	return s != StatusDone
}

// Display returns a human-readable representation of the status.
func (s Status) Display() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusReady:
		return "Ready"
	case StatusInProgress:
		return "In Progress"
	case StatusInReview:
		return "In Review"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusBacklog, StatusReady, StatusInProgress, StatusInReview, StatusDone:
		return true
	default:
		return false
	}
}

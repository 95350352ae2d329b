package domain

// SessionStatus is the lifecycle state reported by the session backend.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionIdle      SessionStatus = "idle"
	SessionFailed    SessionStatus = "failed"
)

// Finished reports whether the session has stopped doing work and its
// produced branch (if any) can be collected. Idle counts: an idle agent has
// either pushed or given up, and re-polling it changes nothing.
func (s SessionStatus) Finished() bool {
	return s == SessionCompleted || s == SessionIdle
}

// Session is a remote coding-agent run.
// Fields are ordered to minimize memory padding.
type Session struct {
	Outcome *SessionOutcome
	ID      string
	WebURL  string
	Status  SessionStatus
}

// SessionOutcome is the structured result metadata a session may report.
// Fields are optional; absent metadata falls through to event inference.
type SessionOutcome struct {
	Branch string
	PRURL  string
}

// SessionEventKind classifies entries in a session's event stream.
type SessionEventKind string

const (
	EventCommand SessionEventKind = "command" // shell command executed by the agent
	EventMessage SessionEventKind = "message" // assistant-visible text
	EventError   SessionEventKind = "error"   // error reported by the session
)

// SessionEvent is one entry of the ordered event stream.
// Fields are ordered to minimize memory padding.
type SessionEvent struct {
	Kind    SessionEventKind
	Command string // populated for command events
	Text    string // populated for message and error events
}

// HasErrorEvent reports whether the stream contains any error event.
// Distinguishes "session reported an error" from "nothing was pushed" in
// the diagnostics attached to reverted items.
func HasErrorEvent(events []SessionEvent) bool {
	for _, e := range events {
		if e.Kind == EventError {
			return true
		}
	}
	return false
}

// CreateSessionRequest describes a session to launch.
// Exactly one of BranchPrefix and Branch is set: a prefix lets the backend
// cut a fresh branch under it, an explicit branch scopes the session to
// existing work (rework, conflict resolution).
// Fields are ordered to minimize memory padding.
type CreateSessionRequest struct {
	Prompt        string
	RepoURL       string
	BranchPrefix  string
	Branch        string
	EnvironmentID string
}

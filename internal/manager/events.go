package manager

// Event names.
const (
	EventSessionCreated  = "session_created"
	EventSessionFailed   = "session_create_failed"
	EventSessionDraining = "session_draining"
	EventDrainTimeout    = "session_drain_timeout"
	EventSessionClosed   = "session_closed"
	EventSessionEvicted  = "session_evicted"
	EventStateCaptured   = "state_captured"
	EventStateRestored   = "state_restored"
	EventPromptDone      = "prompt_done"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + ids and optional fields via key/values.
type Event struct {
	Name      string
	ModelID   string
	SessionID string
	Fields    map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

package manager

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger at info level.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Log.Info().Str("event", e.Name)
	if e.ModelID != "" {
		ev = ev.Str("model", e.ModelID)
	}
	if e.SessionID != "" {
		ev = ev.Str("session", e.SessionID)
	}
	ev.Fields(e.Fields).Msg("manager event")
}

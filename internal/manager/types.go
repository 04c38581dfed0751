package manager

import (
	"time"

	"steerd/internal/session"
)

// State is the lifecycle state of a hosted session.
type State string

const (
	StateReady    State = "ready"
	StateDraining State = "draining"
)

// entry is one hosted session. Fields other than sess are guarded by
// Manager.mu.
type entry struct {
	sess     *session.Session
	modelID  string
	template string
	estMB    int
	created  time.Time
	lastUsed time.Time
	state    State
	// ops counts operations that passed the manager and have not returned;
	// eviction skips entries with ops in flight.
	ops int
}

func (e *entry) idle() bool {
	return e.state == StateReady && e.ops == 0 && !e.sess.Busy() && e.sess.Waiting() == 0
}

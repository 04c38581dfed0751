package manager

import "time"

// CloseSession drains a session and removes it.
//   - Marks it draining so new operations are rejected as not found.
//   - Waits up to the drain timeout for queued and in-flight operations.
//   - Releases the engine once they finish; past the timeout the release
//     completes in the background and the entry is removed anyway.
func (m *Manager) CloseSession(id string) error {
	return m.closeSession(id, true)
}

func (m *Manager) closeSession(id string, bounded bool) error {
	m.mu.Lock()
	e := m.sessions[id]
	if e == nil || e.state == StateDraining {
		m.mu.Unlock()
		return ErrSessionNotFound(id)
	}
	e.state = StateDraining
	m.mu.Unlock()
	m.publish(Event{Name: EventSessionDraining, ModelID: e.modelID, SessionID: id, Fields: map[string]any{
		"queue": e.sess.Waiting(), "busy": e.sess.Busy(),
	}})

	done := make(chan error, 1)
	go func() { done <- e.sess.Close() }()
	var err error
	if bounded {
		timer := time.NewTimer(m.drainTimeout)
		defer timer.Stop()
		select {
		case err = <-done:
		case <-timer.C:
			m.publish(Event{Name: EventDrainTimeout, ModelID: e.modelID, SessionID: id, Fields: map[string]any{
				"queue": e.sess.Waiting(), "busy": e.sess.Busy(),
			}})
		}
	} else {
		err = <-done
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.usedEstMB -= e.estMB
	if m.usedEstMB < 0 {
		m.usedEstMB = 0
	}
	m.mu.Unlock()
	m.noteErr(err)
	m.publish(Event{Name: EventSessionClosed, ModelID: e.modelID, SessionID: id, Fields: map[string]any{}})
	return err
}

package manager

import (
	"context"
	"time"

	"steerd/internal/statestore"
	"steerd/internal/steering"
	"steerd/pkg/types"
)

// acquire looks up a ready session and pins it against eviction until the
// returned release is called.
func (m *Manager) acquire(id string) (*entry, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	e := m.sessions[id]
	if e == nil || e.state != StateReady {
		return nil, nil, ErrSessionNotFound(id)
	}
	e.ops++
	e.lastUsed = time.Now()
	return e, func() {
		m.mu.Lock()
		e.ops--
		e.lastUsed = time.Now()
		m.mu.Unlock()
	}, nil
}

// Session returns the view of one session.
func (m *Manager) Session(id string) (types.SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e := m.sessions[id]
	if e == nil {
		return types.SessionInfo{}, ErrSessionNotFound(id)
	}
	return sessionInfo(id, e), nil
}

// Prompt runs one steered generation on session id. observe may be nil.
func (m *Manager) Prompt(ctx context.Context, id, query string, decide steering.DecisionFunc, observe func(steering.TokenSample, steering.Directive)) (steering.Result, error) {
	e, release, err := m.acquire(id)
	if err != nil {
		return steering.Result{}, err
	}
	defer release()
	start := time.Now()
	res, err := e.sess.Generate(ctx, query, decide, observe)
	if err != nil {
		m.noteErr(err)
		return res, err
	}
	m.publish(Event{Name: EventPromptDone, ModelID: e.modelID, SessionID: id, Fields: map[string]any{
		"steps": res.Steps, "bytes": len(res.Response), "dur_ms": time.Since(start).Milliseconds(),
	}})
	return res, nil
}

// CaptureState primes session id with priming, snapshots it and stores the
// snapshot.
func (m *Manager) CaptureState(ctx context.Context, id, priming string, includeSampler bool) (statestore.Entry, error) {
	e, release, err := m.acquire(id)
	if err != nil {
		return statestore.Entry{}, err
	}
	defer release()
	st, err := e.sess.CapturePromptState(ctx, priming, includeSampler)
	if err != nil {
		m.noteErr(err)
		return statestore.Entry{}, err
	}
	ent, err := m.states.Put(ctx, st)
	if err != nil {
		m.noteErr(err)
		return statestore.Entry{}, err
	}
	m.publish(Event{Name: EventStateCaptured, ModelID: e.modelID, SessionID: id, Fields: map[string]any{
		"state": ent.ID, "bytes": ent.Size, "sampler": includeSampler,
	}})
	return ent, nil
}

// RestoreState loads a stored state into session id.
func (m *Manager) RestoreState(ctx context.Context, id, stateID string) error {
	e, release, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer release()
	st, _, err := m.states.Get(ctx, stateID)
	if err != nil {
		return err
	}
	if err := e.sess.RestorePromptState(ctx, st); err != nil {
		m.noteErr(err)
		return err
	}
	m.publish(Event{Name: EventStateRestored, ModelID: e.modelID, SessionID: id, Fields: map[string]any{"state": stateID}})
	return nil
}

// ClearSession empties the context of session id.
func (m *Manager) ClearSession(ctx context.Context, id string) error {
	e, release, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer release()
	if err := e.sess.Clear(ctx); err != nil {
		m.noteErr(err)
		return err
	}
	return nil
}

func (m *Manager) ListStates(ctx context.Context) ([]statestore.Entry, error) {
	return m.states.List(ctx)
}

func (m *Manager) DeleteState(ctx context.Context, stateID string) error {
	return m.states.Delete(ctx, stateID)
}

// Package statestore keeps captured session states under stable ids so they
// can be restored later, possibly into a different session.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"steerd/internal/session"
)

var (
	// ErrStateNotFound is returned for unknown ids.
	ErrStateNotFound = errors.New("state not found")
	// ErrCorrupt is returned when a stored blob no longer matches its digest.
	ErrCorrupt = errors.New("state corrupt")
)

// Entry is the manifest of one stored state.
type Entry struct {
	ID      string    `json:"id"`
	Digest  string    `json:"digest"`
	Size    int       `json:"size"`
	Model   string    `json:"model"`
	Sampler bool      `json:"sampler"`
	Created time.Time `json:"created"`
}

// Store persists saved states.
type Store interface {
	Put(ctx context.Context, st session.SavedState) (Entry, error)
	Get(ctx context.Context, id string) (session.SavedState, Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
}

func newEntry(st session.SavedState) Entry {
	m := st.Meta()
	created := m.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Entry{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Digest:  st.Digest(),
		Size:    st.Len(),
		Model:   m.Model,
		Sampler: m.Sampler,
		Created: created,
	}
}

func (e Entry) meta() session.StateMeta {
	return session.StateMeta{Model: e.Model, Sampler: e.Sampler, Created: e.Created}
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Created.Equal(es[j].Created) {
			return es[i].ID < es[j].ID
		}
		return es[i].Created.Before(es[j].Created)
	})
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	states  map[string]session.SavedState
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]Entry{}, states: map[string]session.SavedState{}}
}

func (m *Memory) Put(ctx context.Context, st session.SavedState) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if st.IsZero() {
		return Entry{}, session.ErrEmptyState
	}
	e := newEntry(st)
	m.mu.Lock()
	m.entries[e.ID] = e
	m.states[e.ID] = st
	m.mu.Unlock()
	return e, nil
}

func (m *Memory) Get(ctx context.Context, id string) (session.SavedState, Entry, error) {
	if err := ctx.Err(); err != nil {
		return session.SavedState{}, Entry{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return session.SavedState{}, Entry{}, fmt.Errorf("%w: %s", ErrStateNotFound, id)
	}
	return m.states[id], e, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrStateNotFound, id)
	}
	delete(m.entries, id)
	delete(m.states, id)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sortEntries(out)
	return out, nil
}

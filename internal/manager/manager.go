package manager

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"steerd/internal/engine"
	"steerd/internal/statestore"
	"steerd/pkg/types"
)

type Manager struct {
	mu           sync.RWMutex
	registry     []types.Model
	defaultModel string
	backend      string
	loader       engine.Loader
	params       engine.Params
	systemPrompt string
	userSuffix   string
	horizon      int

	budgetMB      int
	marginMB      int
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	sessions  map[string]*entry
	usedEstMB int
	lastErr   string
	closed    bool

	evictions atomic.Uint64
	loads     atomic.Uint64

	states    statestore.Store
	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time
}

// New builds a manager for reg with the given memory budget and defaults
// for everything else.
func New(reg []types.Model, budgetMB, marginMB int, defaultModel string) *Manager {
	return NewWithConfig(Config{
		Registry:     reg,
		BudgetMB:     budgetMB,
		MarginMB:     marginMB,
		DefaultModel: defaultModel,
	})
}

// Ready reports whether the manager can create sessions.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed && len(m.registry) > 0
}

func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Model, len(m.registry))
	copy(out, m.registry)
	return out
}

// SetEventPublisher replaces the event sink. nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Close rejects new work and closes every session, waiting for their
// in-flight operations.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id, e := range m.sessions {
		if e.state == StateReady {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := m.closeSession(id, false); err != nil && !IsSessionNotFound(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

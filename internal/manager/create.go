package manager

import (
	"context"
	"time"

	"steerd/internal/session"
	"steerd/pkg/types"
)

// SessionOptions are per-session overrides of the manager defaults.
type SessionOptions struct {
	Model        string
	Seed         uint32
	ContextSize  int
	Template     string
	SystemPrompt string
	UserSuffix   string
}

// CreateSession resolves the model, evicts idle sessions until the estimate
// fits the budget, and loads a new session. Load failures are not retried.
func (m *Manager) CreateSession(ctx context.Context, o SessionOptions) (types.SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.SessionInfo{}, err
	}
	m.mu.RLock()
	closed := m.closed
	modelID := o.Model
	if modelID == "" {
		modelID = m.defaultModel
	}
	mdl, ok := m.getModelByID(modelID)
	m.mu.RUnlock()
	if closed {
		return types.SessionInfo{}, ErrClosed
	}
	if !ok {
		if modelID == "" {
			modelID = "(unspecified)"
		}
		return types.SessionInfo{}, ErrModelNotFound(modelID)
	}

	reqMB := estimateMB(mdl)
	if err := m.reserve(reqMB); err != nil {
		m.noteErr(err)
		return types.SessionInfo{}, err
	}

	p := m.params
	if o.Seed != 0 {
		p.Seed = o.Seed
	}
	if o.ContextSize > 0 {
		p.ContextSize = o.ContextSize
	}
	switch {
	case o.Template != "":
		p.Template = o.Template
	case mdl.Template != "":
		p.Template = mdl.Template
	}
	opts := []session.Option{
		session.WithLogger(m.log),
		session.WithAdmission(m.maxQueueDepth, m.maxWait),
	}
	if s := firstNonEmpty(o.SystemPrompt, m.systemPrompt); s != "" {
		opts = append(opts, session.WithSystemPrompt(s))
	}
	if s := firstNonEmpty(o.UserSuffix, m.userSuffix); s != "" {
		opts = append(opts, session.WithUserSuffix(s))
	}
	if m.horizon > 0 {
		opts = append(opts, session.WithHorizon(m.horizon))
	}

	sess, err := session.Create(m.loader, mdl.Path, p, opts...)
	if err != nil {
		m.mu.Lock()
		m.usedEstMB -= reqMB
		m.mu.Unlock()
		m.noteErr(err)
		m.publish(Event{Name: EventSessionFailed, ModelID: modelID, Fields: map[string]any{"error": err.Error()}})
		return types.SessionInfo{}, err
	}

	now := time.Now()
	e := &entry{
		sess:     sess,
		modelID:  modelID,
		template: sess.Params().Template,
		estMB:    reqMB,
		created:  now,
		lastUsed: now,
		state:    StateReady,
	}
	m.mu.Lock()
	if m.closed {
		m.usedEstMB -= reqMB
		m.mu.Unlock()
		_ = sess.Close()
		return types.SessionInfo{}, ErrClosed
	}
	m.sessions[sess.ID()] = e
	info := sessionInfo(sess.ID(), e)
	m.mu.Unlock()
	m.loads.Add(1)
	m.publish(Event{Name: EventSessionCreated, ModelID: modelID, SessionID: sess.ID(), Fields: map[string]any{
		"seed": sess.Params().Seed, "ctx": sess.Params().ContextSize, "est_mb": reqMB,
	}})
	return info, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

package manager

import (
	"sort"
	"time"

	"steerd/pkg/types"
)

// sessionInfo projects an entry. Callers hold m.mu.
func sessionInfo(id string, e *entry) types.SessionInfo {
	p := e.sess.Params()
	inflight := 0
	if e.sess.Busy() {
		inflight = 1
	}
	return types.SessionInfo{
		ID:            id,
		ModelID:       e.modelID,
		State:         string(e.state),
		Seed:          p.Seed,
		ContextSize:   p.ContextSize,
		Template:      e.template,
		Created:       e.created.Unix(),
		LastUsed:      e.lastUsed.Unix(),
		EstMB:         e.estMB,
		QueueLen:      e.sess.Waiting(),
		Inflight:      inflight,
		MaxQueueDepth: e.sess.MaxQueue(),
	}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		BudgetMB:       m.budgetMB,
		UsedMB:         m.usedEstMB,
		MarginMB:       m.marginMB,
		Backend:        m.backend,
		LastError:      m.lastErr,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		EvictionsTotal: m.evictions.Load(),
		LoadsTotal:     m.loads.Load(),
	}
	resp.Sessions = make([]types.SessionInfo, 0, len(m.sessions))
	for id, e := range m.sessions {
		if e.state == StateDraining {
			resp.DrainingCount++
		}
		resp.Sessions = append(resp.Sessions, sessionInfo(id, e))
	}
	sort.Slice(resp.Sessions, func(i, j int) bool { return resp.Sessions[i].ID < resp.Sessions[j].ID })
	return resp
}

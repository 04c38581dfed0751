package manager

// reserve makes room for requiredMB and books it. Without a budget it only
// books. Idle sessions are evicted least recently used first; when nothing
// idle is left and the estimate still does not fit, budgetExceededError is
// returned and nothing is booked.
func (m *Manager) reserve(requiredMB int) error {
	for {
		m.mu.Lock()
		if m.budgetMB <= 0 || m.usedEstMB+requiredMB+m.marginMB <= m.budgetMB {
			m.usedEstMB += requiredMB
			m.mu.Unlock()
			return nil
		}
		var lruID string
		var lru *entry
		for id, e := range m.sessions {
			if !e.idle() {
				continue
			}
			if lru == nil || e.lastUsed.Before(lru.lastUsed) {
				lruID, lru = id, e
			}
		}
		if lru == nil {
			err := budgetExceededError{requiredMB: requiredMB, usedMB: m.usedEstMB, budgetMB: m.budgetMB}
			m.mu.Unlock()
			return err
		}
		delete(m.sessions, lruID)
		m.usedEstMB -= lru.estMB
		m.mu.Unlock()

		m.evictions.Add(1)
		// Idle, so Close does not wait on anything.
		_ = lru.sess.Close()
		m.publish(Event{Name: EventSessionEvicted, ModelID: lru.modelID, SessionID: lruID, Fields: map[string]any{"est_mb": lru.estMB}})
	}
}

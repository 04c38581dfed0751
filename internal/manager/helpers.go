package manager

import (
	"os"

	"steerd/pkg/types"
)

// getModelByID finds a model in the registry. Callers hold m.mu.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// estimateMB estimates a session's memory from its model file size.
// Unreadable files count as 1 MB so budget checks are never bypassed.
func estimateMB(mdl types.Model) int {
	fi, err := os.Stat(mdl.Path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}

// noteErr records err as the last error for status output.
func (m *Manager) noteErr(err error) {
	if err == nil || IsTooBusy(err) {
		return
	}
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

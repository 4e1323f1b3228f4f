package workflow

import "holocap/internal/queue"

// ConfigureStages registers the stage handlers; a nil Sync leaves the
// manager unable to start.
func (m *Manager) ConfigureStages(set StageSet) {
	var lane *syncLane
	if set.Sync != nil {
		lane = &syncLane{
			name:    "sync",
			handler: set.Sync,
			entry:   queue.StatusCaptured,
			claim:   queue.StatusSyncing,
			done:    queue.StatusSynced,
		}
	}
	m.mu.Lock()
	m.lane = lane
	m.mu.Unlock()
}

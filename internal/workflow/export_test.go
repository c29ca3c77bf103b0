package workflow

import "time"

// BackoffDelay exposes the retry delay computation for tests.
func (m *Manager) BackoffDelay(attempt int) time.Duration {
	return m.backoffDelay(attempt)
}

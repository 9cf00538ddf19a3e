package workflow

import (
	"context"
	"time"

	"narthex/internal/logging"
	"narthex/internal/queue"
)

func (m *Manager) markSessionBusy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sessionBusy {
		m.sessionBusy = true
		m.sessionStart = time.Now()
	}
}

// checkSessionSettled emits a session summary once every capture in the
// current session has reached a terminal status.
func (m *Manager) checkSessionSettled(ctx context.Context) {
	m.mu.RLock()
	busy := m.sessionBusy
	start := m.sessionStart
	m.mu.RUnlock()
	if !busy {
		return
	}

	settled, err := m.store.SessionSettled(ctx, m.sessionID)
	if err != nil {
		m.logger.Warn("session settlement check failed", logging.Error(err))
		return
	}
	if !settled {
		return
	}

	m.mu.Lock()
	if !m.sessionBusy {
		m.mu.Unlock()
		return
	}
	m.sessionBusy = false
	m.mu.Unlock()

	items, err := m.store.SessionItems(ctx, m.sessionID)
	if err != nil {
		m.logger.Warn("session summary lookup failed", logging.Error(err))
		return
	}
	var saved, duplicates, failed int
	for _, item := range items {
		switch item.Status {
		case queue.StatusCompleted:
			saved++
		case queue.StatusDuplicate:
			duplicates++
		case queue.StatusFailed:
			failed++
		}
	}
	duration := time.Since(start)
	m.logger.Info(
		"session settled",
		logging.String(logging.FieldEventType, "session_settled"),
		logging.Int("saved", saved),
		logging.Int("duplicates", duplicates),
		logging.Int("failed", failed),
		logging.Duration("duration", duration),
	)
	if m.notifier != nil {
		if err := m.notifier.NotifySessionSettled(ctx, saved, duplicates, failed, duration); err != nil {
			m.logger.Warn("session summary notification failed", logging.Error(err))
		}
	}
}

package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"narthex/internal/logging"
)

// Start begins background processing. When captures from a previous session
// remain in the queue, the pipeline starts held and waits for ResumeSession
// or DiscardSession.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	m.mu.Unlock()

	pending, err := m.store.PendingSessionItems(ctx, m.sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.held = len(pending) > 0
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	if len(pending) > 0 {
		m.logger.Warn(
			"captures from a previous session are pending",
			logging.Int("count", len(pending)),
			logging.String(logging.FieldEventType, "session_recovery_required"),
			logging.String(logging.FieldErrorHint, "run 'narthex session resume' or 'narthex session discard'"),
		)
	}

	go m.runMaintenance(runCtx)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing, waits for workers, and rolls any
// in-flight captures back to the start of their stage so a restart resumes
// cleanly.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, cancelReset := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelReset()
	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		m.logger.Warn("failed to roll back in-flight captures on shutdown", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("rolled back in-flight captures for restart", logging.Int64("count", reset))
	}
}

// Held reports whether processing is gated on recovering a previous session.
func (m *Manager) Held() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.held
}

func (m *Manager) release() {
	m.mu.Lock()
	m.held = false
	m.mu.Unlock()
}

// ResumeSession adopts captures left over from a previous session into the
// current one and releases the processing gate.
func (m *Manager) ResumeSession(ctx context.Context) (int64, error) {
	adopted, err := m.store.ResumeSession(ctx, m.sessionID)
	if err != nil {
		return 0, err
	}
	m.release()
	m.logger.Info("resumed previous session", logging.Int64("adopted", adopted))
	return adopted, nil
}

// DiscardSession deletes captures left over from a previous session and
// releases the processing gate.
func (m *Manager) DiscardSession(ctx context.Context) (int64, error) {
	discarded, err := m.store.DiscardSession(ctx, m.sessionID)
	if err != nil {
		return 0, err
	}
	m.release()
	m.logger.Info("discarded previous session", logging.Int64("discarded", discarded))
	return discarded, nil
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.Held() {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		item, err := m.store.ClaimNext(ctx, m.sessionID)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// runMaintenance reclaims captures whose worker stopped heartbeating.
func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStaleItems(ctx, m.logger); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.logger.Warn("reclaim stale processing failed; stuck captures may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check intake database access"),
				)
			}
		}
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	logger.Error("failed to claim next capture",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check intake database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetryInterval):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"narthex/internal/cards"
	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/queue"
	"narthex/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	cards    *cards.Store
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	IntakeDBPath string
	CardsDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, cardStore *cards.Store, wf *workflow.Manager, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || cardStore == nil || wf == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "narthexd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		cards:    cardStore,
		workflow: wf,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the workflow manager and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another narthex daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			d.workflow.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("narthex daemon started",
		logging.String("lock", d.lockPath),
		logging.String("session_id", d.workflow.SessionID()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("narthex daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.store != nil {
		firstErr = d.store.Close()
	}
	if d.cards != nil {
		if err := d.cards.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		IntakeDBPath: filepath.Join(d.cfg.Paths.DataDir, "intake.db"),
		CardsDBPath:  filepath.Join(d.cfg.Paths.DataDir, "cards.db"),
		LockFilePath: d.lockPath,
	}
}

// Enqueue records a new capture under the current session.
func (d *Daemon) Enqueue(ctx context.Context, params queue.NewCaptureParams) (*queue.Item, error) {
	if params.OrgID == "" {
		params.OrgID = d.cfg.Org.DefaultOrgID
	}
	if params.LocationID == "" {
		params.LocationID = d.cfg.Org.DefaultLocationID
	}
	params.SessionID = d.workflow.SessionID()
	return d.store.NewCapture(ctx, params)
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueItem fetches one capture by id, nil when absent.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// RemoveQueueItem deletes one capture unless it is in flight.
func (d *Daemon) RemoveQueueItem(ctx context.Context, id int64) (bool, error) {
	return d.store.Remove(ctx, id)
}

// RetryFailed resets failed and duplicate items (optionally a subset) to
// their resume points.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes settled items (completed and duplicate).
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed queue items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// ResetStuck rolls in-flight items back to the start of their stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// SessionID returns the current intake session identifier.
func (d *Daemon) SessionID() string {
	return d.workflow.SessionID()
}

// PendingPreviousSession lists captures held over from earlier daemon runs.
func (d *Daemon) PendingPreviousSession(ctx context.Context) ([]*queue.Item, error) {
	return d.store.PendingSessionItems(ctx, d.workflow.SessionID())
}

// SessionSettled reports whether every capture in the current session is terminal.
func (d *Daemon) SessionSettled(ctx context.Context) (bool, error) {
	return d.store.SessionSettled(ctx, d.workflow.SessionID())
}

// ResumeSession adopts leftover captures into the current session.
func (d *Daemon) ResumeSession(ctx context.Context) (int64, error) {
	return d.workflow.ResumeSession(ctx)
}

// DiscardSession deletes leftover captures from earlier sessions.
func (d *Daemon) DiscardSession(ctx context.Context) (int64, error) {
	return d.workflow.DiscardSession(ctx)
}

// Batches lists card batches for an organization.
func (d *Daemon) Batches(ctx context.Context, orgID string) ([]*cards.Batch, error) {
	return d.cards.Batches(ctx, d.resolveOrg(orgID))
}

// BatchCards lists the cards inside one batch.
func (d *Daemon) BatchCards(ctx context.Context, orgID string, batchID int64) ([]*cards.ConnectCard, error) {
	return d.cards.CardsByBatch(ctx, d.resolveOrg(orgID), batchID)
}

// MarkCardReviewed marks a card reviewed, completing its batch when it was
// the last unreviewed card.
func (d *Daemon) MarkCardReviewed(ctx context.Context, orgID string, cardID int64) error {
	org := d.resolveOrg(orgID)
	if err := d.cards.MarkReviewed(ctx, org, cardID); err != nil {
		return err
	}
	d.notifyBatchIfCompleted(ctx, org, cardID)
	return nil
}

// DeleteCard removes a card and shrinks its batch count.
func (d *Daemon) DeleteCard(ctx context.Context, orgID string, cardID int64) (bool, error) {
	return d.cards.DeleteCard(ctx, d.resolveOrg(orgID), cardID)
}

// CreateScanToken mints a short-lived phone hand-off token.
func (d *Daemon) CreateScanToken(ctx context.Context, orgID, userID string) (*cards.ScanToken, error) {
	ttl := time.Duration(d.cfg.ScanTokens.TTLMinutes) * time.Minute
	return d.cards.CreateScanToken(ctx, d.resolveOrg(orgID), userID, ttl)
}

// RedeemScanToken validates a hand-off token for the given organization.
func (d *Daemon) RedeemScanToken(ctx context.Context, orgID, token string) (*cards.ScanToken, error) {
	return d.cards.RedeemScanToken(ctx, d.resolveOrg(orgID), token)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

func (d *Daemon) resolveOrg(orgID string) string {
	if orgID != "" {
		return orgID
	}
	return d.cfg.Org.DefaultOrgID
}

func (d *Daemon) notifyBatchIfCompleted(ctx context.Context, orgID string, cardID int64) {
	card, err := d.cards.GetCard(ctx, orgID, cardID)
	if err != nil || card == nil {
		return
	}
	batch, err := d.cards.GetBatch(ctx, orgID, card.BatchID)
	if err != nil || batch == nil || batch.Status != cards.BatchStatusCompleted {
		return
	}
	if err := d.notifier.NotifyBatchCompleted(ctx, batch.Day, batch.CardCount); err != nil {
		d.logger.Warn("batch completion notification failed", logging.Error(err))
	}
}

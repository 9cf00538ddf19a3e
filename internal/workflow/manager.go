package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/queue"
	"narthex/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Uploader  stage.Handler
	Extractor stage.Handler
	Saver     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	notifier  notifications.Service
	sessionID string

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	stageTimeout       time.Duration

	heartbeat *HeartbeatMonitor

	// stages indexes pipeline stages by the processing status ClaimNext
	// moves an item into.
	stages     map[queue.Status]pipelineStage
	stageOrder []pipelineStage

	mu           sync.RWMutex
	running      bool
	held         bool
	cancel       func()
	wg           sync.WaitGroup
	lastErr      error
	lastItem     *queue.Item
	sessionBusy  bool
	sessionStart time.Time
}

// NewManager constructs a workflow manager with the default ntfy notifier.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, sessionID string) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, sessionID, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, sessionID string, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		notifier:           notifier,
		sessionID:          sessionID,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		stageTimeout:       time.Duration(cfg.Workflow.StageTimeout) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		stages: make(map[queue.Status]pipelineStage),
	}
}

// ConfigureStages registers the stage handlers for the intake pipeline.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stageOrder = []pipelineStage{
		{name: "upload", handler: set.Uploader, processingStatus: queue.StatusUploading, doneStatus: queue.StatusUploaded},
		{name: "extraction", handler: set.Extractor, processingStatus: queue.StatusExtracting, doneStatus: queue.StatusExtracted},
		{name: "persist", handler: set.Saver, processingStatus: queue.StatusSaving, doneStatus: queue.StatusCompleted},
	}
	m.stages = make(map[queue.Status]pipelineStage, len(m.stageOrder))
	for _, stg := range m.stageOrder {
		m.stages[stg.processingStatus] = stg
	}
}

// SessionID returns the session identifier this manager processes under.
func (m *Manager) SessionID() string {
	return m.sessionID
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		copied := *item
		m.lastItem = &copied
	}
	m.mu.Unlock()
}

// StageHealth reports handler readiness for each configured stage.
func (m *Manager) StageHealth(ctx context.Context) []stage.Health {
	m.mu.RLock()
	order := m.stageOrder
	m.mu.RUnlock()

	healths := make([]stage.Health, 0, len(order))
	for _, stg := range order {
		if stg.handler == nil {
			healths = append(healths, stage.Unhealthy(stg.name, "handler not configured"))
			continue
		}
		healths = append(healths, stg.handler.HealthCheck(ctx))
	}
	return healths
}

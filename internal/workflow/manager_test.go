package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/notifications"
	"narthex/internal/queue"
	"narthex/internal/services"
	"narthex/internal/stage"
	"narthex/internal/testsupport"
	"narthex/internal/workflow"
)

type fakeHandler struct {
	name    string
	execute func(ctx context.Context, item *queue.Item) error
	mu      sync.Mutex
	calls   int
}

func (f *fakeHandler) Prepare(ctx context.Context, item *queue.Item) error { return nil }

func (f *fakeHandler) Execute(ctx context.Context, item *queue.Item) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx, item)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy(f.name) }

func (f *fakeHandler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	notifications.Service
	mu       sync.Mutex
	failures []string
	settled  int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{Service: notifications.NewService(&config.Config{})}
}

func (r *recordingNotifier) NotifyCaptureFailed(ctx context.Context, filename, stageName string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stageName)
	return nil
}

func (r *recordingNotifier) NotifySessionSettled(ctx context.Context, saved, duplicates, failed int, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled++
	return nil
}

func (r *recordingNotifier) settledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settled
}

func (r *recordingNotifier) failedStages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

func defaultStages() workflow.StageSet {
	return workflow.StageSet{
		Uploader: &fakeHandler{name: "upload", execute: func(ctx context.Context, item *queue.Item) error {
			item.StorageKey = "orgs/test-org/cards/" + item.OriginalFilename
			return nil
		}},
		Extractor: &fakeHandler{name: "extraction", execute: func(ctx context.Context, item *queue.Item) error {
			item.Fingerprint = "fp-" + item.OriginalFilename
			item.FieldsJSON = `{"name":"Test Person"}`
			return nil
		}},
		Saver: &fakeHandler{name: "persist", execute: func(ctx context.Context, item *queue.Item) error {
			item.CardID = 1
			return nil
		}},
	}
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store, set workflow.StageSet, notifier notifications.Service) *workflow.Manager {
	t.Helper()
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	if notifier == nil {
		notifier = newRecordingNotifier()
	}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), testsupport.TestSessionID, notifier)
	mgr.ConfigureStages(set)
	return mgr
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		item, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if item != nil && item.Status == want {
			return item
		}
		time.Sleep(50 * time.Millisecond)
	}
	item, _ := store.GetByID(context.Background(), id)
	t.Fatalf("item %d never reached %s (last status %v)", id, want, item)
	return nil
}

func TestManagerProcessesCaptureThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	notifier := newRecordingNotifier()
	mgr := newTestManager(t, cfg, store, defaultStages(), notifier)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusCompleted)
	if final.StorageKey == "" || final.Fingerprint == "" || final.FieldsJSON == "" {
		t.Fatalf("stage outputs missing: %+v", final)
	}
	if final.CardID != 1 {
		t.Fatalf("CardID = %d, want 1", final.CardID)
	}
	if final.Attempts != 3 {
		t.Fatalf("Attempts = %d, want one claim per stage", final.Attempts)
	}
	if final.LastHeartbeat != nil {
		t.Fatal("heartbeat should be cleared after completion")
	}

	deadline := time.Now().Add(10 * time.Second)
	for notifier.settledCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if notifier.settledCount() == 0 {
		t.Fatal("expected a session summary notification")
	}
}

func TestManagerMarksFailedStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	set := defaultStages()
	set.Extractor = &fakeHandler{name: "extraction", execute: func(ctx context.Context, item *queue.Item) error {
		return services.Wrap(services.ErrExternalService, "extraction", "vision", "Vision service unavailable", nil)
	}}

	notifier := newRecordingNotifier()
	mgr := newTestManager(t, cfg, store, set, notifier)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if final.FailedStage != "extraction" {
		t.Fatalf("FailedStage = %q, want extraction", final.FailedStage)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected an error message on the failed item")
	}
	if final.StorageKey == "" {
		t.Fatal("upload output should survive the extraction failure")
	}

	deadline := time.Now().Add(10 * time.Second)
	for len(notifier.failedStages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	stages := notifier.failedStages()
	if len(stages) == 0 || stages[0] != "extraction" {
		t.Fatalf("failure notifications = %v", stages)
	}
}

func TestManagerHonorsHandlerSettledStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	set := defaultStages()
	saver := set.Saver.(*fakeHandler)
	set.Extractor = &fakeHandler{name: "extraction", execute: func(ctx context.Context, item *queue.Item) error {
		item.SetDuplicate(7)
		return nil
	}}

	mgr := newTestManager(t, cfg, store, set, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusDuplicate)
	if final.DuplicateOfCardID != 7 {
		t.Fatalf("DuplicateOfCardID = %d, want 7", final.DuplicateOfCardID)
	}
	if saver.callCount() != 0 {
		t.Fatalf("persist stage ran %d times for a settled duplicate", saver.callCount())
	}
}

func TestManagerHoldsForPreviousSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	leftover, err := store.NewCapture(context.Background(), queue.NewCaptureParams{
		OrgID:            "test-org",
		SessionID:        "previous-session",
		OriginalFilename: "leftover.jpg",
	})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	mgr := newTestManager(t, cfg, store, defaultStages(), nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	if !mgr.Held() {
		t.Fatal("manager should hold processing with leftover captures")
	}

	// Holding must cover fresh captures too.
	fresh := testsupport.NewCapture(t, store, "fresh.jpg")
	time.Sleep(1500 * time.Millisecond)
	current, err := store.GetByID(context.Background(), fresh.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != queue.StatusQueued {
		t.Fatalf("held manager processed capture: %s", current.Status)
	}

	adopted, err := mgr.ResumeSession(context.Background())
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if adopted != 1 {
		t.Fatalf("adopted = %d, want 1", adopted)
	}
	if mgr.Held() {
		t.Fatal("manager should release after resume")
	}

	waitForStatus(t, store, leftover.ID, queue.StatusCompleted)
	waitForStatus(t, store, fresh.ID, queue.StatusCompleted)
}

func TestManagerDiscardSessionDropsLeftovers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	leftover, err := store.NewCapture(context.Background(), queue.NewCaptureParams{
		OrgID:            "test-org",
		SessionID:        "previous-session",
		OriginalFilename: "leftover.jpg",
	})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	mgr := newTestManager(t, cfg, store, defaultStages(), nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	discarded, err := mgr.DiscardSession(context.Background())
	if err != nil {
		t.Fatalf("DiscardSession: %v", err)
	}
	if discarded != 1 {
		t.Fatalf("discarded = %d, want 1", discarded)
	}
	if item, err := store.GetByID(context.Background(), leftover.ID); err != nil || item != nil {
		t.Fatalf("leftover should be deleted, got item=%v err=%v", item, err)
	}
}

func TestManagerStageTimeoutFailsItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewCapture(t, store, "card.jpg")

	set := defaultStages()
	set.Uploader = &fakeHandler{name: "upload", execute: func(ctx context.Context, item *queue.Item) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	cfg.Workflow.StageTimeout = 1
	mgr := newTestManager(t, cfg, store, set, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	final := waitForStatus(t, store, item.ID, queue.StatusFailed)
	if final.FailedStage != "upload" {
		t.Fatalf("FailedStage = %q, want upload", final.FailedStage)
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := newTestManager(t, cfg, store, defaultStages(), nil)
	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("manager should not report running before Start")
	}
	if summary.SessionID != testsupport.TestSessionID {
		t.Fatalf("SessionID = %q", summary.SessionID)
	}
	if len(summary.StageHealth) != 3 {
		t.Fatalf("StageHealth entries = %d, want 3", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("stage %s unexpectedly unhealthy: %s", name, health.Detail)
		}
	}
}

func TestManagerStartRequiresConfiguredStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), testsupport.TestSessionID, newRecordingNotifier())
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected error starting without stages")
	}
}

package watchfolder_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"narthex/internal/logging"
	"narthex/internal/queue"
	"narthex/internal/testsupport"
	"narthex/internal/watchfolder"
)

type recordingSink struct {
	mu     sync.Mutex
	params []queue.NewCaptureParams
}

func (s *recordingSink) Enqueue(ctx context.Context, params queue.NewCaptureParams) (*queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, params)
	return &queue.Item{ID: int64(len(s.params)), OriginalFilename: params.OriginalFilename}, nil
}

func (s *recordingSink) captured() []queue.NewCaptureParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]queue.NewCaptureParams, len(s.params))
	copy(out, s.params)
	return out
}

func dropImage(t *testing.T, dir, name string, size int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, size)
	// Backdate the file so the watcher treats it as settled.
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

func waitForCaptures(t *testing.T, sink *recordingSink, want int) []queue.NewCaptureParams {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if got := sink.captured(); len(got) >= want {
			return got
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d captures, have %d", want, len(sink.captured()))
	return nil
}

func TestWatcherDisabledIsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.WatchFolder.Enabled = false

	w, err := watchfolder.New(cfg, &recordingSink{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when disabled")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("nil watcher Start: %v", err)
	}
	w.Stop()
}

func TestWatcherRequiresDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.WatchFolder.Enabled = true
	cfg.WatchFolder.Dir = ""

	if _, err := watchfolder.New(cfg, &recordingSink{}, logging.NewNop()); err == nil {
		t.Fatal("expected error for enabled watch folder without directory")
	}
}

func TestWatcherAdoptsDroppedImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.WatchFolder.Enabled = true
	cfg.WatchFolder.Dir = filepath.Join(testsupport.BaseDir(cfg), "drop")
	cfg.WatchFolder.ScanInterval = 1

	dropImage(t, cfg.WatchFolder.Dir, "scan-001.jpg", 512)
	dropImage(t, cfg.WatchFolder.Dir, "notes.txt", 64)

	sink := &recordingSink{}
	w, err := watchfolder.New(cfg, sink, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)

	captures := waitForCaptures(t, sink, 1)
	if len(captures) != 1 {
		t.Fatalf("expected only the image adopted, got %d", len(captures))
	}
	got := captures[0]
	if got.OriginalFilename != "scan-001.jpg" {
		t.Fatalf("unexpected original filename %q", got.OriginalFilename)
	}
	if got.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", got.ContentType)
	}
	if got.SizeBytes != 512 {
		t.Fatalf("unexpected size %d", got.SizeBytes)
	}
	if filepath.Dir(got.SourcePath) != cfg.Paths.IncomingDir {
		t.Fatalf("expected source moved under incoming dir, got %q", got.SourcePath)
	}
	if _, err := os.Stat(got.SourcePath); err != nil {
		t.Fatalf("expected adopted file to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WatchFolder.Dir, "scan-001.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected image removed from drop directory, err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WatchFolder.Dir, "notes.txt")); err != nil {
		t.Fatalf("expected non-image left alone: %v", err)
	}
}

func TestWatcherPicksUpLateArrivals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.WatchFolder.Enabled = true
	cfg.WatchFolder.Dir = filepath.Join(testsupport.BaseDir(cfg), "drop")
	cfg.WatchFolder.ScanInterval = 1

	sink := &recordingSink{}
	w, err := watchfolder.New(cfg, sink, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)

	dropImage(t, cfg.WatchFolder.Dir, "late.png", 128)

	captures := waitForCaptures(t, sink, 1)
	if captures[0].OriginalFilename != "late.png" {
		t.Fatalf("unexpected original filename %q", captures[0].OriginalFilename)
	}
	if captures[0].ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", captures[0].ContentType)
	}
}

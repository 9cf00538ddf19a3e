package watchfolder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"narthex/internal/config"
	"narthex/internal/logging"
	"narthex/internal/queue"
)

// settleDelay is how long a file must sit unmodified before it is adopted.
// Scanners write large images incrementally; adopting too early would enqueue
// a truncated capture.
const settleDelay = 2 * time.Second

// CaptureSink receives adopted images. *daemon.Daemon satisfies it.
type CaptureSink interface {
	Enqueue(ctx context.Context, params queue.NewCaptureParams) (*queue.Item, error)
}

// Watcher monitors the configured drop directory.
type Watcher struct {
	dir         string
	incomingDir string
	interval    time.Duration
	sink        CaptureSink
	logger      *slog.Logger

	fsWatcher *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New builds a watcher from configuration. It returns (nil, nil) when the
// watch folder is disabled.
func New(cfg *config.Config, sink CaptureSink, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil || !cfg.WatchFolder.Enabled {
		return nil, nil
	}
	if sink == nil {
		return nil, errors.New("watch folder requires a capture sink")
	}
	dir := strings.TrimSpace(cfg.WatchFolder.Dir)
	if dir == "" {
		return nil, errors.New("watch folder enabled without a directory")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.WatchFolder.ScanInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Watcher{
		dir:         dir,
		incomingDir: cfg.Paths.IncomingDir,
		interval:    interval,
		sink:        sink,
		logger:      logger.With(logging.String(logging.FieldComponent, "watchfolder")),
	}, nil
}

// Start begins watching. It sweeps once immediately so images dropped while
// the daemon was down are adopted without waiting for an event.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watch folder already running")
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := fsWatcher.Add(w.dir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.fsWatcher = fsWatcher

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.run(runCtx)

	w.logger.Info("watch folder started",
		logging.String("dir", w.dir),
		logging.Duration("scan_interval", w.interval),
	)
	return nil
}

// Stop halts watching and waits for the sweep loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	w.wg.Wait()
	w.logger.Info("watch folder stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Events fire while a scanner is still writing, so the sweep is delayed
	// until the file has had time to settle.
	pending := time.NewTimer(settleDelay)
	if !pending.Stop() {
		<-pending.C
	}
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending.Reset(settleDelay)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", logging.Error(err))
		case <-pending.C:
			w.sweep(ctx)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep adopts every settled image currently in the drop directory.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to read watch directory", logging.Error(err))
		return
	}
	cutoff := time.Now().Add(-settleDelay)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !isImageFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		w.adopt(ctx, filepath.Join(w.dir, entry.Name()), info.Size())
	}
}

// adopt moves one image into the incoming directory and enqueues it.
func (w *Watcher) adopt(ctx context.Context, path string, size int64) {
	dest := filepath.Join(w.incomingDir, uuid.NewString()+strings.ToLower(filepath.Ext(path)))
	if err := moveFile(path, dest); err != nil {
		w.logger.Warn("failed to adopt dropped image",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}

	item, err := w.sink.Enqueue(ctx, queue.NewCaptureParams{
		SourcePath:       dest,
		OriginalFilename: filepath.Base(path),
		ContentType:      contentTypeFor(path),
		SizeBytes:        size,
	})
	if err != nil {
		w.logger.Error("failed to enqueue dropped image",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}
	w.logger.Info("dropped image enqueued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("filename", item.OriginalFilename),
	)
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
		return true
	default:
		return false
	}
}

func contentTypeFor(path string) string {
	if kind := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); kind != "" {
		return kind
	}
	return "application/octet-stream"
}

// moveFile renames when possible and falls back to copy-and-delete for drop
// directories on a different filesystem.
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return os.Remove(src)
}

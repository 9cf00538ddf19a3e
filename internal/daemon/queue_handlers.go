package daemon

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"narthex/internal/api"
	"narthex/internal/logging"
	"narthex/internal/queue"
)

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listQueue(w, r)
	case http.MethodPost:
		s.enqueueCapture(w, r, "")
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

// enqueueCapture accepts a multipart image upload and queues it for
// processing. orgOverride scopes captures authorized by a scan token.
func (s *apiServer) enqueueCapture(w http.ResponseWriter, r *http.Request, orgOverride string) {
	maxBytes := int64(s.daemon.cfg.Storage.MaxUploadMiB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	sourcePath, size, err := s.saveIncoming(file, header.Filename)
	if err != nil {
		s.logger.Error("failed to save incoming capture", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "could not store the uploaded image")
		return
	}

	contentType := header.Header.Get("Content-Type")
	orgID := orgOverride
	if orgID == "" {
		orgID = strings.TrimSpace(r.FormValue("org_id"))
	}
	item, err := s.daemon.Enqueue(r.Context(), queue.NewCaptureParams{
		OrgID:            orgID,
		LocationID:       strings.TrimSpace(r.FormValue("location_id")),
		SourcePath:       sourcePath,
		OriginalFilename: filepath.Base(header.Filename),
		ContentType:      contentType,
		SizeBytes:        size,
	})
	if err != nil {
		_ = os.Remove(sourcePath)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueItemResponse{Item: api.FromQueueItem(item)})
}

// saveIncoming copies an uploaded image into the incoming directory under a
// collision-free name.
func (s *apiServer) saveIncoming(file multipart.File, filename string) (string, int64, error) {
	dir := s.daemon.cfg.Paths.IncomingDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create incoming dir: %w", err)
	}
	ext := filepath.Ext(filename)
	path := filepath.Join(dir, uuid.NewString()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create incoming file: %w", err)
	}
	size, err := io.Copy(out, file)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write incoming file: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close incoming file: %w", closeErr)
	}
	return path, size, nil
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if rest == "stats" {
		s.handleQueueStats(w, r)
		return
	}

	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeQueueItem(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.removeQueueItem(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.retryQueueItem(w, r, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	counts, err := s.queueSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueStatsResponse{Counts: counts})
}

func (s *apiServer) describeQueueItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: *item})
}

func (s *apiServer) removeQueueItem(w http.ResponseWriter, r *http.Request, id int64) {
	removed, err := s.daemon.RemoveQueueItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, queue.ErrItemInFlight) {
			s.writeError(w, http.StatusConflict, "capture is in flight; wait for it to settle")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: 1})
}

func (s *apiServer) retryQueueItem(w http.ResponseWriter, r *http.Request, id int64) {
	retried, err := s.daemon.RetryFailed(r.Context(), []int64{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if retried == 0 {
		s.writeError(w, http.StatusConflict, "capture is not in a retryable state")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AffectedResponse{Affected: retried})
}

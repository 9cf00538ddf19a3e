package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"narthex/internal/api"
	"narthex/internal/daemon"
	"narthex/internal/logging"
	"narthex/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Narthex", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun narthex stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	workflow := api.FromStatusSummary(status.Workflow)
	resp.Running = status.Running
	resp.Held = workflow.Held
	resp.SessionID = workflow.SessionID
	resp.QueueStats = workflow.QueueStats
	resp.LastError = workflow.LastError
	resp.LastItem = workflow.LastItem
	resp.LockPath = status.LockFilePath
	resp.IntakeDBPath = status.IntakeDBPath
	resp.CardsDBPath = status.CardsDBPath
	resp.StageHealth = workflow.StageHealth
	resp.PID = status.PID
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			return fmt.Errorf("unknown status %q", status)
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromQueueItems(items)
	return nil
}

func (s *service) QueueAdd(req QueueAddRequest, resp *QueueAddResponse) error {
	if req.Path == "" {
		return errors.New("queue add requires an image path")
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		return fmt.Errorf("stat capture image: %w", err)
	}
	item, err := s.daemon.Enqueue(s.ctx, queue.NewCaptureParams{
		OrgID:            req.OrgID,
		LocationID:       req.LocationID,
		SourcePath:       req.Path,
		OriginalFilename: filepath.Base(req.Path),
		SizeBytes:        info.Size(),
	})
	if err != nil {
		return err
	}
	resp.Item = api.FromQueueItem(item)
	s.log().Info("capture enqueued via IPC",
		logging.String(logging.FieldEventType, "queue_add"),
		logging.Int64(logging.FieldItemID, item.ID))
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid queue item id %d", req.ID)
	}
	item, err := s.daemon.GetQueueItem(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %d not found", req.ID)
	}
	resp.Item = api.FromQueueItem(item)
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid queue item id %d", req.ID)
	}
	removed, err := s.daemon.RemoveQueueItem(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue settled items cleared",
		logging.String(logging.FieldEventType, "queue_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueClearFailed(_ QueueClearFailedRequest, resp *QueueClearFailedResponse) error {
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue failed items cleared",
		logging.String(logging.FieldEventType, "queue_clear_failed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueReset(_ QueueResetRequest, resp *QueueResetResponse) error {
	updated, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("stuck captures reset",
		logging.String(logging.FieldEventType, "queue_reset_stuck"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("captures retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Queued = health.Queued
	resp.Processing = health.Processing
	resp.Completed = health.Completed
	resp.Failed = health.Failed
	resp.Duplicate = health.Duplicate
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.TableExists = health.TableExists
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalItems = health.TotalItems
	resp.Error = health.Error
	return err
}

func (s *service) SessionStatus(_ SessionStatusRequest, resp *SessionStatusResponse) error {
	pending, err := s.daemon.PendingPreviousSession(s.ctx)
	if err != nil {
		return err
	}
	settled, err := s.daemon.SessionSettled(s.ctx)
	if err != nil {
		return err
	}
	resp.SessionID = s.daemon.SessionID()
	resp.PendingPrevious = api.FromQueueItems(pending)
	resp.Settled = settled
	return nil
}

func (s *service) SessionResume(_ SessionResumeRequest, resp *SessionResumeResponse) error {
	adopted, err := s.daemon.ResumeSession(s.ctx)
	if err != nil {
		return err
	}
	resp.Adopted = adopted
	s.log().Info("previous session resumed",
		logging.String(logging.FieldEventType, "session_resume"),
		logging.Int64("adopted_count", adopted))
	return nil
}

func (s *service) SessionDiscard(_ SessionDiscardRequest, resp *SessionDiscardResponse) error {
	discarded, err := s.daemon.DiscardSession(s.ctx)
	if err != nil {
		return err
	}
	resp.Discarded = discarded
	s.log().Info("previous session discarded",
		logging.String(logging.FieldEventType, "session_discard"),
		logging.Int64("discarded_count", discarded))
	return nil
}

func (s *service) BatchList(req BatchListRequest, resp *BatchListResponse) error {
	batches, err := s.daemon.Batches(s.ctx, req.OrgID)
	if err != nil {
		return err
	}
	resp.Batches = api.FromBatches(batches)
	return nil
}

func (s *service) BatchCards(req BatchCardsRequest, resp *BatchCardsResponse) error {
	if req.BatchID <= 0 {
		return fmt.Errorf("invalid batch id %d", req.BatchID)
	}
	list, err := s.daemon.BatchCards(s.ctx, req.OrgID, req.BatchID)
	if err != nil {
		return err
	}
	resp.Cards = api.FromCards(list)
	return nil
}

func (s *service) CardReview(req CardReviewRequest, resp *CardReviewResponse) error {
	if req.CardID <= 0 {
		return fmt.Errorf("invalid card id %d", req.CardID)
	}
	if err := s.daemon.MarkCardReviewed(s.ctx, req.OrgID, req.CardID); err != nil {
		return err
	}
	resp.Reviewed = true
	return nil
}

func (s *service) CardDelete(req CardDeleteRequest, resp *CardDeleteResponse) error {
	if req.CardID <= 0 {
		return fmt.Errorf("invalid card id %d", req.CardID)
	}
	removed, err := s.daemon.DeleteCard(s.ctx, req.OrgID, req.CardID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) ScanTokenCreate(req ScanTokenCreateRequest, resp *ScanTokenCreateResponse) error {
	token, err := s.daemon.CreateScanToken(s.ctx, req.OrgID, req.UserID)
	if err != nil {
		return err
	}
	resp.Token = api.FromScanToken(token)
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "notification sent"
	return nil
}

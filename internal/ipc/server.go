package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"shuttle/internal/api"
	"shuttle/internal/capture"
	"shuttle/internal/daemon"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
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

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Shuttle", srv); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
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
					logging.String("impact", "IPC clients may fail to connect"))
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
			logging.String("impact", "stale IPC socket may block future starts"))
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

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.InFlightMediaID = status.Pipeline.InFlight
	resp.LastError = status.Pipeline.LastError
	resp.QueueStats = api.MergeQueueStats(status.QueueStats)
	resp.SpoolFiles = status.Spool.Files
	resp.SpoolBytes = status.Spool.Bytes
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	tasks, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Tasks = api.FromTasks(tasks)
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested")
	removed, err := s.daemon.CancelAll(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) CancelAll(_ CancelAllRequest, resp *CancelAllResponse) error {
	s.log().Debug("cancel all requested")
	canceled, err := s.daemon.CancelAll(s.ctx)
	if err != nil {
		return err
	}
	resp.Canceled = canceled
	s.log().Info("queued uploads canceled",
		logging.String(logging.FieldEventType, "queue_cancel_all"),
		logging.Int("canceled_count", canceled))
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	meta, err := submitMetadata(req)
	if err != nil {
		return err
	}
	receipt, err := s.daemon.Submit(s.ctx, req.Path, meta)
	if err != nil {
		return err
	}
	resp.MediaID = receipt.MediaID
	resp.Accepted = receipt.Accepted
	resp.SizeBytes = receipt.Size
	resp.Fingerprint = receipt.Fingerprint
	return nil
}

func (s *service) TestNotify(_ TestNotifyRequest, resp *TestNotifyResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}

// submitMetadata translates the wire request into capture metadata. Gaps are
// left for the daemon to fill from the sidecar and file modification time.
func submitMetadata(req SubmitRequest) (capture.Metadata, error) {
	var meta capture.Metadata
	if raw := strings.TrimSpace(req.CapturedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return capture.Metadata{}, fmt.Errorf("parse capturedAt: %w", err)
		}
		meta.CapturedAt = parsed
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return capture.Metadata{}, errors.New("latitude and longitude must be provided together")
	}
	if req.Latitude != nil && req.Longitude != nil {
		meta.Location = &capture.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	if raw := strings.TrimSpace(req.Orientation); raw != "" {
		orientation, ok := capture.ParseOrientation(raw)
		if !ok {
			return capture.Metadata{}, fmt.Errorf("unknown orientation %q", raw)
		}
		meta.Orientation = orientation
	}
	return meta, nil
}

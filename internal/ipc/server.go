package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"sam/internal/daemon"
	"sam/internal/logging"
)

// ServiceName is the JSON-RPC receiver name.
const ServiceName = "Sam"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts RPC connections until Close.
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// Close stops accepting, drops open client connections and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun sam stop"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ Empty, resp *StatusResponse) error {
	*resp = s.daemon.Status()
	return nil
}

func (s *service) CameraStart(_ Empty, resp *Response) error {
	*resp = s.daemon.StartCamera(s.ctx)
	return nil
}

func (s *service) CameraStop(_ Empty, resp *Response) error {
	*resp = s.daemon.StopCamera()
	return nil
}

func (s *service) CameraToggle(_ Empty, resp *Response) error {
	*resp = s.daemon.ToggleCamera(s.ctx)
	return nil
}

func (s *service) ManualEntry(req ManualEntryRequest, resp *Response) error {
	*resp = s.daemon.ManualEntry(s.ctx, req.Name)
	return nil
}

func (s *service) Today(_ Empty, resp *TodayResponse) error {
	*resp = s.daemon.Today()
	return nil
}

func (s *service) Attendance(req AttendanceRequest, resp *AttendanceResponse) error {
	records, err := s.daemon.Attendance(s.ctx, req.Date)
	if err != nil {
		return err
	}
	resp.Records = records
	return nil
}

func (s *service) SettingsGet(_ Empty, resp *SettingsResponse) error {
	resp.Values = s.daemon.Settings()
	return nil
}

func (s *service) SettingsSet(req SettingsSetRequest, resp *Response) error {
	*resp = s.daemon.SetSetting(req.Key, req.Value)
	return nil
}

func (s *service) SettingsUpdate(req SettingsUpdateRequest, resp *Response) error {
	*resp = s.daemon.UpdateSettings(req.Values)
	return nil
}

func (s *service) SettingsReset(_ Empty, resp *Response) error {
	*resp = s.daemon.ResetSettings()
	return nil
}

func (s *service) SettingsExport(req SettingsExportRequest, resp *Response) error {
	*resp = s.daemon.ExportSettings(req.Dir)
	return nil
}

func (s *service) SettingsImport(req SettingsImportRequest, resp *Response) error {
	*resp = s.daemon.ImportSettings(req.Path)
	return nil
}

func (s *service) ReportOpen(_ Empty, resp *Response) error {
	*resp = s.daemon.OpenReport(s.ctx)
	return nil
}

func (s *service) ReportSync(_ Empty, resp *Response) error {
	*resp = s.daemon.SyncReport(s.ctx)
	return nil
}

func (s *service) WindowClosing(_ Empty, resp *Response) error {
	s.logger.Info("window closing via IPC", logging.String(logging.FieldEventType, "ipc_window_closing"))
	s.daemon.OnWindowClosing()
	*resp = Response{Success: true, Message: "Shutting down"}
	return nil
}

func (s *service) Shutdown(_ Empty, resp *Response) error {
	s.logger.Info("shutdown via IPC", logging.String(logging.FieldEventType, "ipc_shutdown"))
	s.daemon.RequestShutdown()
	*resp = Response{Success: true, Message: "Shutting down"}
	return nil
}

func (s *service) TestNotification(_ Empty, resp *Response) error {
	*resp = s.daemon.TestNotification(s.ctx)
	return nil
}

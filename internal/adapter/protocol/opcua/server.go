package opcua

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// validStatuses enumerates the device statuses SetStatus accepts.
var validStatuses = map[string]domain.DeviceStatus{
	"active":      domain.DeviceStatusActive,
	"offline":     domain.DeviceStatusOffline,
	"error":       domain.DeviceStatusError,
	"maintenance": domain.DeviceStatusMaintenance,
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error
}

// Config configures the OPC UA server's TCP listener and published endpoint.
type Config struct {
	ListenAddr string // e.g. ":4840"
	Namespace  string // "INSA Advanced IIoT Platform"
}

type request struct {
	Op       string `json:"op"`
	Path     string `json:"path"`
	DeviceID string `json:"device_id,omitempty"`
	Arg      string `json:"arg,omitempty"`
}

type response struct {
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Server accepts long-lived TCP sessions, one per connected client, each
// exchanging newline-delimited JSON browse/read/call requests against the
// shared AddressSpace.
type Server struct {
	cfg     Config
	space   *AddressSpace
	status  StatusUpdater
	logger  *slog.Logger
	ln      net.Listener
	stopCh  chan struct{}
}

func New(cfg Config, space *AddressSpace, status StatusUpdater, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, space: space, status: status, logger: logger.With("component", "opcua_adapter"), stopCh: make(chan struct{})}
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.ln = ln
	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) Stop() {
	close(s.stopCh)
	if s.ln != nil {
		s.ln.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("opcua accept error", "error", err)
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			enc.Encode(response{OK: false, Error: "malformed request"})
			continue
		}
		enc.Encode(s.dispatch(ctx, req))
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	switch req.Op {
	case "browse":
		return response{OK: true, Result: s.space.Browse()}
	case "read":
		deviceID, err := uuid.Parse(req.DeviceID)
		if err != nil {
			return response{OK: false, Error: "invalid device_id"}
		}
		node, ok := s.space.Read(deviceID)
		if !ok {
			return response{OK: false, Error: "device not found"}
		}
		return response{OK: true, Result: node}
	case "call":
		if req.Path != "SetStatus" {
			return response{OK: false, Error: "unknown method"}
		}
		return s.callSetStatus(ctx, req)
	default:
		return response{OK: false, Error: "unknown op"}
	}
}

func (s *Server) callSetStatus(ctx context.Context, req request) response {
	deviceID, err := uuid.Parse(req.DeviceID)
	if err != nil {
		return response{OK: false, Error: "invalid device_id"}
	}
	status, ok := validStatuses[req.Arg]
	if !ok {
		return response{OK: false, Error: fmt.Sprintf("unrecognized status %q", req.Arg)}
	}
	if err := s.status.UpdateStatus(ctx, deviceID, status, time.Now()); err != nil {
		return response{OK: false, Error: err.Error()}
	}
	s.space.SetStatus(deviceID, req.Arg)
	return response{OK: true, Result: req.Arg}
}

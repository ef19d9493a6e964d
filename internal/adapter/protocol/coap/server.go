package coap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// BindingResolver resolves a device id to its owning tenant id when a
// telemetry payload omits tenant_id.
type BindingResolver interface {
	Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error)
}

// DeviceLister backs the /devices resource.
type DeviceLister interface {
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error)
}

// Config configures the CoAP server's UDP listener.
type Config struct {
	ListenAddr string // e.g. ":5683"
}

// telemetryBody is the payload shape POSTed to /telemetry, in either JSON
// (Content-Format 50) or CBOR (Content-Format 60).
type telemetryBody struct {
	DeviceID  string                 `json:"device_id" cbor:"device_id"`
	TenantID  *string                `json:"tenant_id,omitempty" cbor:"tenant_id,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty" cbor:"timestamp,omitempty"`
	Readings  map[string]bodyReading `json:"readings" cbor:"readings"`
}

type bodyReading struct {
	Value   interface{} `json:"value" cbor:"value"`
	Unit    *string     `json:"unit,omitempty" cbor:"unit,omitempty"`
	Quality *float64    `json:"quality,omitempty" cbor:"quality,omitempty"`
}

// Server implements the three resources spec'd for the CoAP adapter:
// POST /telemetry, GET /devices, GET /.well-known/core.
type Server struct {
	cfg      Config
	conn     *net.UDPConn
	in       chan<- domain.NormalizedTelemetryEvent
	bindings BindingResolver
	devices  DeviceLister
	logger   *slog.Logger
	stopCh   chan struct{}
}

func New(cfg Config, in chan<- domain.NormalizedTelemetryEvent, bindings BindingResolver, devices DeviceLister, logger *slog.Logger) *Server {
	return &Server{
		cfg: cfg, in: in, bindings: bindings, devices: devices,
		logger: logger.With("component", "coap_adapter"), stopCh: make(chan struct{}),
	}
}

func (s *Server) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("resolve coap listen address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	s.conn = conn
	go s.run(ctx)
	return nil
}

func (s *Server) Stop() {
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Server) run(ctx context.Context) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logger.Warn("coap read error", "error", err)
			continue
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		go s.handleDatagram(ctx, raw, addr)
	}
}

func (s *Server) handleDatagram(ctx context.Context, raw []byte, addr *net.UDPAddr) {
	req, err := Decode(raw)
	if err != nil {
		s.logger.Warn("malformed coap datagram, dropping", "from", addr, "error", err)
		return
	}

	var resp *Message
	switch req.URIPath() {
	case "/telemetry":
		resp = s.handleTelemetry(ctx, req)
	case "/devices":
		resp = s.handleDevices(ctx, req)
	case "/.well-known/core":
		resp = s.handleDiscovery(req)
	default:
		resp = req.Response(CodeNotFound, nil)
	}

	if _, err := s.conn.WriteToUDP(resp.Encode(), addr); err != nil {
		s.logger.Warn("coap write error", "to", addr, "error", err)
	}
}

func (s *Server) handleTelemetry(ctx context.Context, req *Message) *Message {
	if req.Code != CodePOST {
		return req.Response(CodeBadRequest, nil)
	}

	var body telemetryBody
	var err error
	if req.ContentFormat() == ContentFormatCBOR {
		err = cbor.Unmarshal(req.Payload, &body)
	} else {
		err = json.Unmarshal(req.Payload, &body)
	}
	if err != nil {
		return req.Response(CodeBadRequest, nil)
	}

	deviceID, err := uuid.Parse(body.DeviceID)
	if err != nil {
		return req.Response(CodeBadRequest, nil)
	}

	tenantID, ok := s.resolveTenant(ctx, deviceID, body.TenantID)
	if !ok {
		return req.Response(CodeForbidden, nil)
	}

	evt := domain.NormalizedTelemetryEvent{
		TenantID: tenantID, DeviceID: deviceID,
		Readings:       toReadings(body.Readings),
		SourceProtocol: domain.ProtocolCoAP,
	}
	if body.Timestamp != nil {
		evt.Timestamp = *body.Timestamp
	} else {
		evt.Timestamp = time.Now()
	}

	select {
	case s.in <- evt:
		return req.Response(CodeCreated, nil)
	default:
		return req.Response(CodeServiceUnavailable, nil)
	}
}

func (s *Server) resolveTenant(ctx context.Context, deviceID uuid.UUID, payloadTenantID *string) (uuid.UUID, bool) {
	if payloadTenantID != nil {
		if id, err := uuid.Parse(*payloadTenantID); err == nil {
			return id, true
		}
	}
	if s.bindings == nil {
		return uuid.Nil, false
	}
	id, err := s.bindings.Resolve(ctx, deviceID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func toReadings(readings map[string]bodyReading) map[string]domain.Reading {
	out := make(map[string]domain.Reading, len(readings))
	for key, r := range readings {
		reading := domain.Reading{Unit: r.Unit, Quality: r.Quality}
		switch v := r.Value.(type) {
		case float64:
			reading.NumericValue = &v
		case int64:
			f := float64(v)
			reading.NumericValue = &f
		case uint64:
			f := float64(v)
			reading.NumericValue = &f
		case string:
			reading.StringValue = &v
		default:
			s := fmt.Sprintf("%v", v)
			reading.StringValue = &s
		}
		out[key] = reading
	}
	return out
}

func (s *Server) handleDevices(ctx context.Context, req *Message) *Message {
	if req.Code != CodeGET || s.devices == nil {
		return req.Response(CodeBadRequest, nil)
	}
	query := req.URIQuery()

	var result []*domain.Device
	if idRaw, ok := query["id"]; ok {
		id, err := uuid.Parse(idRaw)
		if err != nil {
			return req.Response(CodeBadRequest, nil)
		}
		device, err := s.devices.FindByIDAnyTenant(ctx, id)
		if err != nil {
			return req.Response(CodeNotFound, nil)
		}
		result = []*domain.Device{device}
	} else if tenantRaw, ok := query["tenant_id"]; ok {
		tenantID, err := uuid.Parse(tenantRaw)
		if err != nil {
			return req.Response(CodeBadRequest, nil)
		}
		devices, err := s.devices.FindByTenant(ctx, tenantID, 100, 0)
		if err != nil {
			return req.Response(CodeInternalServerError, nil)
		}
		result = devices
	} else {
		return req.Response(CodeBadRequest, nil)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return req.Response(CodeInternalServerError, nil)
	}
	return req.Response(CodeContent, payload)
}

// handleDiscovery serves a minimal RFC 6690 link-format description of the
// two application resources (well-known/core excluded from its own listing).
func (s *Server) handleDiscovery(req *Message) *Message {
	body := []byte(`</telemetry>;rt="iiot.telemetry";ct=50, </devices>;rt="iiot.devices";ct=50`)
	return req.Response(CodeContent, body)
}

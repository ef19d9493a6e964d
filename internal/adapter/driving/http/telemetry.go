package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// TelemetryHandler exposes batch ingestion and query/aggregate over
// TelemetryPoint rows. Ingestion is also reachable through the protocol
// adapters (MQTT, CoAP, AMQP, OPC UA); this is the HTTP fallback path used by
// devices or gateways that push over plain REST.
type TelemetryHandler struct {
	errorHandler
	service port.TelemetryService
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(service port.TelemetryService, errors *apperror.Handler) *TelemetryHandler {
	return &TelemetryHandler{errorHandler{errors}, service}
}

// Routes registers telemetry routes.
func (h *TelemetryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.IngestBatch)
	r.Get("/", h.Fetch)
	r.Get("/aggregate", h.Aggregate)
	return r
}

type telemetryPointRequest struct {
	DeviceID     uuid.UUID `json:"device_id"`
	Key          string    `json:"key"`
	NumericValue *float64  `json:"numeric_value"`
	StringValue  *string   `json:"string_value"`
	Unit         *string   `json:"unit"`
	Timestamp    time.Time `json:"timestamp"`
	QualityScore *float64  `json:"quality_score"`
}

type ingestBatchRequest struct {
	Points []telemetryPointRequest `json:"points"`
}

// IngestBatch writes a batch of telemetry points over HTTP.
func (h *TelemetryHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req ingestBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if len(req.Points) == 0 {
		h.Handle(w, r, apperror.Validation("points must not be empty"))
		return
	}

	points := make([]*domain.TelemetryPoint, 0, len(req.Points))
	for _, p := range req.Points {
		quality := 1.0
		if p.QualityScore != nil {
			quality = *p.QualityScore
		}
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		point := &domain.TelemetryPoint{
			TenantID:           u.TenantID,
			DeviceID:           p.DeviceID,
			Key:                p.Key,
			NumericValue:       p.NumericValue,
			StringValue:        p.StringValue,
			Unit:               p.Unit,
			Timestamp:          ts,
			IngestionTimestamp: time.Now().UTC(),
			QualityScore:       quality,
			SourceProtocol:     domain.ProtocolMQTT,
		}
		if err := point.Validate(); err != nil {
			h.Handle(w, r, err)
			return
		}
		points = append(points, point)
	}

	n, err := h.service.IngestBatch(ctx, u.TenantID, points)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{"ingested": n})
}

// Fetch returns raw telemetry points for a device/key over a window.
func (h *TelemetryHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	query, err := h.parseQuery(r, u.TenantID)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	result, err := h.service.Fetch(ctx, *query)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":        result.Points,
		"next_cursor": result.NextCursor,
	})
}

// Aggregate returns an aggregate over a device/key window.
func (h *TelemetryHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	query, err := h.parseQuery(r, u.TenantID)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	agg := domain.AggregationType(r.URL.Query().Get("agg"))
	if !agg.IsValid() {
		h.Handle(w, r, domain.ErrInvalidAggregate)
		return
	}

	result, err := h.service.Aggregate(ctx, *query, agg)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: result})
}

func (h *TelemetryHandler) parseQuery(r *http.Request, tenantID uuid.UUID) (*domain.TelemetryQuery, error) {
	q := r.URL.Query()

	deviceID, err := uuid.Parse(q.Get("device_id"))
	if err != nil {
		return nil, apperror.Validation("device_id is required and must be a valid UUID")
	}

	key := q.Get("key")

	var window domain.TelemetryWindow
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperror.Validation("start must be RFC3339")
		}
		window.Start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, apperror.Validation("end must be RFC3339")
		}
		window.End = t
	}

	limit := defaultLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}

	query := &domain.TelemetryQuery{
		TenantID: tenantID,
		DeviceID: deviceID,
		Key:      key,
		Window:   window,
		Cursor:   q.Get("cursor"),
		Limit:    limit,
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	return query, nil
}

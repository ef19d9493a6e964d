package domain

import (
	"time"

	"github.com/google/uuid"
)

// TelemetryPoint is a single (key, value, timestamp) reading from a device.
// Append-only; (device_id, key, timestamp) is effectively unique within a
// sub-second grain, and duplicates are idempotently dropped at insert time.
type TelemetryPoint struct {
	TenantID           uuid.UUID
	DeviceID           uuid.UUID
	Key                string
	NumericValue       *float64
	StringValue        *string
	Unit               *string
	Timestamp          time.Time
	IngestionTimestamp time.Time
	QualityScore       float64
	Anomaly            bool
	SourceProtocol     DeviceProtocol
}

// IsNumeric reports whether the reading carries a numeric value.
func (p *TelemetryPoint) IsNumeric() bool {
	return p.NumericValue != nil
}

// Validate checks the shape invariants required before a point can be
// persisted: exactly one of numeric/string value populated, quality score in
// range, and a non-empty key.
func (p *TelemetryPoint) Validate() error {
	if p.Key == "" {
		return ErrInvalidTelemetryReading
	}
	if p.NumericValue == nil && p.StringValue == nil {
		return ErrInvalidTelemetryReading
	}
	if p.NumericValue != nil && p.StringValue != nil {
		return ErrInvalidTelemetryReading
	}
	if p.QualityScore < 0 || p.QualityScore > 1 {
		return ErrInvalidTelemetryReading
	}
	return nil
}

// NormalizedTelemetryEvent is the uniform record produced by every protocol
// adapter before it reaches the ingestion pipeline.
type NormalizedTelemetryEvent struct {
	TenantID       uuid.UUID
	DeviceID       uuid.UUID
	Readings       map[string]Reading
	Timestamp      time.Time
	SourceProtocol DeviceProtocol
	Raw            []byte
}

// Reading is a single key's value within a NormalizedTelemetryEvent.
type Reading struct {
	NumericValue *float64
	StringValue  *string
	Unit         *string
	Quality      *float64
}

// AggregationType defines how to aggregate telemetry over a window.
type AggregationType string

const (
	AggregationAvg    AggregationType = "avg"
	AggregationMin    AggregationType = "min"
	AggregationMax    AggregationType = "max"
	AggregationCount  AggregationType = "count"
	AggregationStddev AggregationType = "stddev"
)

// IsValid reports whether a is a recognized aggregate function.
func (a AggregationType) IsValid() bool {
	switch a {
	case AggregationAvg, AggregationMin, AggregationMax, AggregationCount, AggregationStddev:
		return true
	default:
		return false
	}
}

// TelemetryWindow bounds a query or aggregation by time.
type TelemetryWindow struct {
	Start time.Time
	End   time.Time
}

// TelemetryQuery describes a fetch_telemetry request.
type TelemetryQuery struct {
	TenantID uuid.UUID
	DeviceID uuid.UUID
	Key      string
	Window   TelemetryWindow
	Cursor   string
	Limit    int
}

// Validate checks required fields on a telemetry query.
func (q *TelemetryQuery) Validate() error {
	if q.TenantID == uuid.Nil || q.DeviceID == uuid.Nil || q.Key == "" {
		return ErrValidation
	}
	if !q.Window.Start.IsZero() && !q.Window.End.IsZero() && q.Window.Start.After(q.Window.End) {
		return ErrValidation
	}
	return nil
}

// AggregateResult is the outcome of query_aggregate over a window.
type AggregateResult struct {
	Count   int64
	Average float64
	Min     float64
	Max     float64
	Stddev  float64
}

package postgres

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// TelemetryRepository implements port.TelemetryRepository.
//
// InsertBatch stages incoming points via pgx.CopyFrom into a per-transaction
// temp table, then folds them into telemetry_points with ON CONFLICT DO
// NOTHING so reconnect/retry storms from protocol adapters never duplicate a
// reading. Dedup key is (device_id, key, date_trunc('millisecond', timestamp)).
type TelemetryRepository struct {
	pool *pgxpool.Pool
}

// NewTelemetryRepository creates a new telemetry repository.
func NewTelemetryRepository(pool *pgxpool.Pool) *TelemetryRepository {
	return &TelemetryRepository{pool: pool}
}

type telemetryRow struct {
	tenantID     uuid.UUID
	deviceID     uuid.UUID
	key          string
	numericValue *float64
	stringValue  *string
	unit         *string
	timestamp    time.Time
	qualityScore float64
	anomaly      bool
	protocol     string
}

func (r telemetryRow) values() []interface{} {
	return []interface{}{
		r.tenantID, r.deviceID, r.key, r.numericValue, r.stringValue, r.unit,
		r.timestamp, r.qualityScore, r.anomaly, r.protocol,
	}
}

func (r *TelemetryRepository) InsertBatch(ctx context.Context, points []*domain.TelemetryPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE telemetry_staging (
			tenant_id uuid, device_id uuid, key text, numeric_value double precision,
			string_value text, unit text, timestamp timestamptz, quality_score double precision,
			anomaly boolean, source_protocol text
		) ON COMMIT DROP`); err != nil {
		return 0, err
	}

	rows := make([]telemetryRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, telemetryRow{
			tenantID: p.TenantID, deviceID: p.DeviceID, key: p.Key,
			numericValue: p.NumericValue, stringValue: p.StringValue, unit: p.Unit,
			timestamp: p.Timestamp, qualityScore: p.QualityScore, anomaly: p.Anomaly,
			protocol: string(p.SourceProtocol),
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"telemetry_staging"},
		[]string{"tenant_id", "device_id", "key", "numeric_value", "string_value", "unit",
			"timestamp", "quality_score", "anomaly", "source_protocol"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]interface{}, error) {
			return rows[i].values(), nil
		}))
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO telemetry_points (tenant_id, device_id, key, numeric_value, string_value, unit,
			timestamp, ingestion_timestamp, quality_score, anomaly, source_protocol)
		SELECT tenant_id, device_id, key, numeric_value, string_value, unit, timestamp, now(),
			quality_score, anomaly, source_protocol
		FROM telemetry_staging
		ON CONFLICT (device_id, key, (date_trunc('millisecond', timestamp))) DO NOTHING`)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *TelemetryRepository) Fetch(ctx context.Context, query domain.TelemetryQuery) ([]*domain.TelemetryPoint, string, error) {
	limit := query.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	args := []interface{}{query.TenantID, query.DeviceID, query.Key}
	sql := `SELECT tenant_id, device_id, key, numeric_value, string_value, unit, timestamp,
		ingestion_timestamp, quality_score, anomaly, source_protocol
		FROM telemetry_points WHERE tenant_id = $1 AND device_id = $2 AND key = $3`

	if !query.Window.Start.IsZero() {
		args = append(args, query.Window.Start)
		sql += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if !query.Window.End.IsZero() {
		args = append(args, query.Window.End)
		sql += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}
	if query.Cursor != "" {
		cursorTime, err := decodeTelemetryCursor(query.Cursor)
		if err != nil {
			return nil, "", domain.ErrValidation
		}
		args = append(args, cursorTime)
		sql += fmt.Sprintf(" AND timestamp > $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY timestamp ASC LIMIT $%d", len(args))

	rows, err := dbFromContext(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var points []*domain.TelemetryPoint
	for rows.Next() {
		p, err := scanTelemetryPoint(rows)
		if err != nil {
			return nil, "", err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(points) == limit {
		nextCursor = encodeTelemetryCursor(points[len(points)-1].Timestamp)
	}
	return points, nextCursor, nil
}

func (r *TelemetryRepository) Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT tenant_id, device_id, key, numeric_value, string_value, unit, timestamp,
			ingestion_timestamp, quality_score, anomaly, source_protocol
		FROM telemetry_points WHERE tenant_id = $1 AND device_id = $2 AND key = $3
		ORDER BY timestamp DESC LIMIT 1`, tenantID, deviceID, key)
	return scanTelemetryPoint(row)
}

func (r *TelemetryRepository) Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*), coalesce(avg(numeric_value), 0), coalesce(min(numeric_value), 0),
			coalesce(max(numeric_value), 0), coalesce(stddev_pop(numeric_value), 0)
		FROM telemetry_points
		WHERE tenant_id = $1 AND device_id = $2 AND key = $3 AND timestamp >= $4 AND timestamp <= $5`,
		query.TenantID, query.DeviceID, query.Key, query.Window.Start, query.Window.End)

	var result domain.AggregateResult
	if err := row.Scan(&result.Count, &result.Average, &result.Min, &result.Max, &result.Stddev); err != nil {
		return nil, err
	}
	if math.IsNaN(result.Stddev) {
		result.Stddev = 0
	}
	return &result, nil
}

func (r *TelemetryRepository) CountToday(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM telemetry_points
		WHERE tenant_id = $1 AND timestamp >= date_trunc('day', now())`, tenantID).Scan(&count)
	return count, err
}

// ReserveQuota serializes the check-and-increment of a tenant's daily
// telemetry counter behind the row lock that an INSERT ... ON CONFLICT DO
// UPDATE takes on the tenant's per-day counter row for the transaction, so
// concurrent ingestion batches cannot both observe headroom and jointly
// overshoot the cap.
func (r *TelemetryRepository) ReserveQuota(ctx context.Context, tenantID uuid.UUID, n int64, cap *int64) error {
	if cap == nil {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var used int64
	err = tx.QueryRow(ctx, `
		INSERT INTO telemetry_quota_counters (tenant_id, day, used)
		VALUES ($1, date_trunc('day', now()), 0)
		ON CONFLICT (tenant_id, day) DO UPDATE SET tenant_id = telemetry_quota_counters.tenant_id
		RETURNING used`, tenantID).Scan(&used)
	if err != nil {
		return err
	}

	if used+n > *cap {
		return domain.ErrQuotaExceeded
	}

	if _, err := tx.Exec(ctx, `
		UPDATE telemetry_quota_counters SET used = used + $2
		WHERE tenant_id = $1 AND day = date_trunc('day', now())`, tenantID, n); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanTelemetryPoint(row rowScanner) (*domain.TelemetryPoint, error) {
	var p domain.TelemetryPoint
	var protocol string
	err := row.Scan(&p.TenantID, &p.DeviceID, &p.Key, &p.NumericValue, &p.StringValue, &p.Unit,
		&p.Timestamp, &p.IngestionTimestamp, &p.QualityScore, &p.Anomaly, &protocol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.SourceProtocol = domain.DeviceProtocol(protocol)
	return &p, nil
}

func encodeTelemetryCursor(t time.Time) string {
	return base64.URLEncoding.EncodeToString([]byte(t.Format(time.RFC3339Nano)))
}

func decodeTelemetryCursor(cursor string) (time.Time, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(raw))
}

package ruleengine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

type fakeTelemetryReader struct {
	points map[string]*domain.TelemetryPoint
	aggs   map[string]*domain.AggregateResult
	err    error
}

func newFakeTelemetryReader() *fakeTelemetryReader {
	return &fakeTelemetryReader{
		points: make(map[string]*domain.TelemetryPoint),
		aggs:   make(map[string]*domain.AggregateResult),
	}
}

func (f *fakeTelemetryReader) Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.points[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeTelemetryReader) Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.aggs[query.Key]
	if !ok {
		return &domain.AggregateResult{}, nil
	}
	return r, nil
}

func numeric(v float64) *domain.TelemetryPoint {
	return &domain.TelemetryPoint{NumericValue: &v}
}

func stringValue(s string) *domain.TelemetryPoint {
	return &domain.TelemetryPoint{StringValue: &s}
}

func TestThresholdCondition_Evaluate(t *testing.T) {
	now := time.Now()
	tenantID, deviceID := uuid.New(), uuid.New()

	t.Run("fires when threshold crossed", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95.0)

		cond := &Condition{Threshold: &ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("does not fire when below threshold", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(80.0)

		cond := &Condition{Threshold: &ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("missing data never fires", func(t *testing.T) {
		reader := newFakeTelemetryReader()

		cond := &Condition{Threshold: &ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("string reading against numeric condition returns ErrMalformedData", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = stringValue("hot")

		cond := &Condition{Threshold: &ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		assert.False(t, matched)
		assert.ErrorIs(t, err, ErrMalformedData)
	})

	t.Run("propagates unexpected repository errors", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.err = errors.New("connection reset")

		cond := &Condition{Threshold: &ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90}}
		_, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrMalformedData)
	})
}

func TestComparisonCondition_Evaluate(t *testing.T) {
	now := time.Now()
	tenantID, deviceID := uuid.New(), uuid.New()

	t.Run("fires when comparison holds", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["inlet_temp"] = numeric(100)
		reader.points["outlet_temp"] = numeric(60)

		cond := &Condition{Comparison: &ComparisonCondition{KeyA: "inlet_temp", Operator: OpGT, KeyB: "outlet_temp"}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("missing one side never fires", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["inlet_temp"] = numeric(100)

		cond := &Condition{Comparison: &ComparisonCondition{KeyA: "inlet_temp", Operator: OpGT, KeyB: "outlet_temp"}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("type mismatch across keys is malformed", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["inlet_temp"] = numeric(100)
		reader.points["outlet_temp"] = stringValue("n/a")

		cond := &Condition{Comparison: &ComparisonCondition{KeyA: "inlet_temp", Operator: OpGT, KeyB: "outlet_temp"}}
		_, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		assert.ErrorIs(t, err, ErrMalformedData)
	})
}

func TestStatisticalCondition_Evaluate(t *testing.T) {
	now := time.Now()
	tenantID, deviceID := uuid.New(), uuid.New()

	t.Run("fires on aggregate comparison", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.aggs["vibration"] = &domain.AggregateResult{Count: 12, Average: 4.2}

		cond := &Condition{Statistical: &StatisticalCondition{
			Key: "vibration", Aggregate: domain.AggregationAvg, WindowSeconds: 300, Operator: OpGT, Value: 4,
		}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("zero samples never fires", func(t *testing.T) {
		reader := newFakeTelemetryReader()

		cond := &Condition{Statistical: &StatisticalCondition{
			Key: "vibration", Aggregate: domain.AggregationAvg, WindowSeconds: 300, Operator: OpGT, Value: 4,
		}}
		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)

		require.NoError(t, err)
		assert.False(t, matched)
	})
}

func TestTimeWindowCondition_Evaluate(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()

	t.Run("inner condition only evaluated inside schedule", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95)

		inner, _ := json.Marshal(ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90})
		now := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

		cond := &Condition{TimeWindow: &TimeWindowCondition{
			ScheduleCronExpr: "30 9 * * *",
			InnerCondition:   inner,
			InnerType:        domain.RuleTypeThreshold,
		}}

		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)
		require.NoError(t, err)
		assert.True(t, matched)
	})

	t.Run("outside schedule never fires regardless of inner condition", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95)

		inner, _ := json.Marshal(ThresholdCondition{Key: "temperature", Operator: OpGT, Value: 90})
		now := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)

		cond := &Condition{TimeWindow: &TimeWindowCondition{
			ScheduleCronExpr: "30 9 * * *",
			InnerCondition:   inner,
			InnerType:        domain.RuleTypeThreshold,
		}}

		matched, err := cond.Evaluate(context.Background(), reader, tenantID, deviceID, now)
		require.NoError(t, err)
		assert.False(t, matched)
	})
}

func TestParseCondition(t *testing.T) {
	t.Run("rejects unknown rule type", func(t *testing.T) {
		_, err := ParseCondition(domain.RuleType("bogus"), json.RawMessage(`{}`))
		require.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseCondition(domain.RuleTypeThreshold, json.RawMessage(`not json`))
		require.Error(t, err)
	})
}

func TestCondition_Keys(t *testing.T) {
	t.Run("threshold", func(t *testing.T) {
		c := &Condition{Threshold: &ThresholdCondition{Key: "temperature"}}
		assert.Equal(t, []string{"temperature"}, c.Keys())
	})

	t.Run("comparison", func(t *testing.T) {
		c := &Condition{Comparison: &ComparisonCondition{KeyA: "a", KeyB: "b"}}
		assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
	})

	t.Run("time_window recurses into inner condition", func(t *testing.T) {
		inner, _ := json.Marshal(ThresholdCondition{Key: "pressure"})
		c := &Condition{TimeWindow: &TimeWindowCondition{InnerType: domain.RuleTypeThreshold, InnerCondition: inner}}
		assert.Equal(t, []string{"pressure"}, c.Keys())
	})
}

// Package ruleengine evaluates tenant rules against telemetry, on a
// schedule and reactively, and emits alert candidates when a rule's
// condition matches.
package ruleengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// TelemetryReader is the read surface the condition DSL needs. Satisfied
// directly by port.TelemetryRepository.
type TelemetryReader interface {
	Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error)
	Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error)
}

// Operator is a comparison operator used by threshold, comparison, and
// statistical conditions.
type Operator string

const (
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

func compare(a, b float64, op Operator) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}

// Condition is the closed sum type backing a Rule's ConditionConfig. Exactly
// one of the four fields is populated, selected by the parent Rule's Type.
type Condition struct {
	Threshold   *ThresholdCondition
	Comparison  *ComparisonCondition
	Statistical *StatisticalCondition
	TimeWindow  *TimeWindowCondition
}

// ThresholdCondition compares the latest value of Key against Value.
type ThresholdCondition struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// ComparisonCondition compares the latest values of two keys on the same device.
type ComparisonCondition struct {
	KeyA     string   `json:"key_a"`
	Operator Operator `json:"operator"`
	KeyB     string   `json:"key_b"`
}

// StatisticalCondition aggregates Key over a trailing window then compares.
type StatisticalCondition struct {
	Key            string                 `json:"key"`
	Aggregate      domain.AggregationType `json:"aggregate"`
	WindowSeconds  int                    `json:"window_seconds"`
	Operator       Operator               `json:"operator"`
	Value          float64                `json:"value"`
}

// TimeWindowCondition wraps another condition, only evaluating it when the
// local time matches ScheduleCronExpr.
type TimeWindowCondition struct {
	ScheduleCronExpr string          `json:"schedule_cron_expr"`
	InnerCondition   json.RawMessage `json:"inner_condition"`
	InnerType        domain.RuleType `json:"inner_type"`
}

// ErrMalformedData is returned (never as a hard failure) when a condition
// expects a numeric reading but finds a string one, or vice versa. Callers
// must treat it as "does not fire", not as an evaluation error.
var ErrMalformedData = fmt.Errorf("telemetry value type does not match condition")

// ParseCondition decodes a rule's raw ConditionConfig into a Condition for
// the given type.
func ParseCondition(ruleType domain.RuleType, raw json.RawMessage) (*Condition, error) {
	c := &Condition{}
	switch ruleType {
	case domain.RuleTypeThreshold:
		var t ThresholdCondition
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		c.Threshold = &t
	case domain.RuleTypeComparison:
		var cp ComparisonCondition
		if err := json.Unmarshal(raw, &cp); err != nil {
			return nil, err
		}
		c.Comparison = &cp
	case domain.RuleTypeStatistical:
		var s StatisticalCondition
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		c.Statistical = &s
	case domain.RuleTypeTimeWindow:
		var tw TimeWindowCondition
		if err := json.Unmarshal(raw, &tw); err != nil {
			return nil, err
		}
		c.TimeWindow = &tw
	default:
		return nil, fmt.Errorf("unknown rule type: %s", ruleType)
	}
	return c, nil
}

// Keys returns the telemetry keys this condition reads, recursing through a
// time_window condition's inner condition. Used by the reactive trigger to
// decide whether an incoming reading is relevant to a rule without running a
// full evaluation.
func (c *Condition) Keys() []string {
	switch {
	case c.Threshold != nil:
		return []string{c.Threshold.Key}
	case c.Comparison != nil:
		return []string{c.Comparison.KeyA, c.Comparison.KeyB}
	case c.Statistical != nil:
		return []string{c.Statistical.Key}
	case c.TimeWindow != nil:
		inner, err := ParseCondition(c.TimeWindow.InnerType, c.TimeWindow.InnerCondition)
		if err != nil {
			return nil
		}
		return inner.Keys()
	default:
		return nil
	}
}

// Evaluate is the DSL's single total entry point: given a reader and the
// device the rule is being checked against, it returns whether the
// condition matched. It never returns a plain error for "missing data" or
// "type mismatch" cases described in the spec -- those resolve to
// (false, nil) or (false, ErrMalformedData) respectively, both of which the
// caller treats as "did not fire".
func (c *Condition) Evaluate(ctx context.Context, reader TelemetryReader, tenantID, deviceID uuid.UUID, now time.Time) (bool, error) {
	switch {
	case c.Threshold != nil:
		return evaluateThreshold(ctx, reader, tenantID, deviceID, c.Threshold)
	case c.Comparison != nil:
		return evaluateComparison(ctx, reader, tenantID, deviceID, c.Comparison)
	case c.Statistical != nil:
		return evaluateStatistical(ctx, reader, tenantID, deviceID, c.Statistical, now)
	case c.TimeWindow != nil:
		return evaluateTimeWindow(ctx, reader, tenantID, deviceID, c.TimeWindow, now)
	default:
		return false, fmt.Errorf("empty condition")
	}
}

func evaluateThreshold(ctx context.Context, reader TelemetryReader, tenantID, deviceID uuid.UUID, t *ThresholdCondition) (bool, error) {
	point, err := reader.Latest(ctx, tenantID, deviceID, t.Key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if point == nil || !point.IsNumeric() {
		if point != nil && point.StringValue != nil {
			return false, ErrMalformedData
		}
		return false, nil
	}
	return compare(*point.NumericValue, t.Value, t.Operator), nil
}

func evaluateComparison(ctx context.Context, reader TelemetryReader, tenantID, deviceID uuid.UUID, c *ComparisonCondition) (bool, error) {
	a, err := reader.Latest(ctx, tenantID, deviceID, c.KeyA)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	b, err := reader.Latest(ctx, tenantID, deviceID, c.KeyB)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if a == nil || b == nil {
		return false, nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return false, ErrMalformedData
	}
	return compare(*a.NumericValue, *b.NumericValue, c.Operator), nil
}

func evaluateStatistical(ctx context.Context, reader TelemetryReader, tenantID, deviceID uuid.UUID, s *StatisticalCondition, now time.Time) (bool, error) {
	window := time.Duration(s.WindowSeconds) * time.Second
	query := domain.TelemetryQuery{
		TenantID: tenantID,
		DeviceID: deviceID,
		Key:      s.Key,
		Window: domain.TelemetryWindow{
			Start: now.Add(-window),
			End:   now,
		},
	}

	result, err := reader.Aggregate(ctx, query, s.Aggregate)
	if err != nil {
		return false, err
	}
	if result == nil || result.Count == 0 {
		return false, nil
	}

	var value float64
	switch s.Aggregate {
	case domain.AggregationAvg:
		value = result.Average
	case domain.AggregationMin:
		value = result.Min
	case domain.AggregationMax:
		value = result.Max
	case domain.AggregationStddev:
		value = result.Stddev
	case domain.AggregationCount:
		value = float64(result.Count)
	default:
		return false, fmt.Errorf("unsupported aggregate: %s", s.Aggregate)
	}

	return compare(value, s.Value, s.Operator), nil
}

func evaluateTimeWindow(ctx context.Context, reader TelemetryReader, tenantID, deviceID uuid.UUID, tw *TimeWindowCondition, now time.Time) (bool, error) {
	schedule, err := cron.ParseStandard(tw.ScheduleCronExpr)
	if err != nil {
		return false, fmt.Errorf("invalid schedule_cron_expr: %w", err)
	}
	// A cron expression "matches" the current minute if the next scheduled
	// fire time after one second before the minute's start is that start.
	truncated := now.Truncate(time.Minute)
	next := schedule.Next(truncated.Add(-time.Second))
	if !next.Equal(truncated) {
		return false, nil
	}

	inner, err := ParseCondition(tw.InnerType, tw.InnerCondition)
	if err != nil {
		return false, err
	}
	return inner.Evaluate(ctx, reader, tenantID, deviceID, now)
}

package ruleengine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

type fakeRuleSource struct {
	rules         []*domain.Rule
	markEvaluated []uuid.UUID
}

func (f *fakeRuleSource) FindAllEnabled(ctx context.Context) ([]*domain.Rule, error) {
	return f.rules, nil
}

func (f *fakeRuleSource) MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.markEvaluated = append(f.markEvaluated, id)
	return nil
}

type fakeDeviceSource struct {
	devicesByTenant map[uuid.UUID][]*domain.Device
}

func (f *fakeDeviceSource) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	all := f.devicesByTenant[tenantID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func TestScheduler_RunOnce(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()

	t.Run("evaluates tenant-wide rule against every device and marks it evaluated", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95)

		cache := NewRuleCache(nil, testLogger())
		emitter := &fakeAlertEmitter{}
		engine := NewEngine(reader, cache, &fakeActiveAlertFinder{}, emitter, &fakeRuleTrigger{}, nil, testLogger())

		rule := newTestRule(tenantID)
		rules := &fakeRuleSource{rules: []*domain.Rule{rule}}
		devices := &fakeDeviceSource{devicesByTenant: map[uuid.UUID][]*domain.Device{
			tenantID: {{ID: deviceID}},
		}}

		scheduler := NewScheduler(rules, devices, engine, time.Minute, testLogger())
		scheduler.runOnce(context.Background())

		assert.Len(t, emitter.calls, 1)
		assert.Contains(t, rules.markEvaluated, rule.ID)
	})

	t.Run("skips a rule not yet due for re-evaluation", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95)

		cache := NewRuleCache(nil, testLogger())
		emitter := &fakeAlertEmitter{}
		engine := NewEngine(reader, cache, &fakeActiveAlertFinder{}, emitter, &fakeRuleTrigger{}, nil, testLogger())

		rule := newTestRule(tenantID)
		lastEvaluated := time.Now()
		rule.LastEvaluatedAt = &lastEvaluated
		rules := &fakeRuleSource{rules: []*domain.Rule{rule}}
		devices := &fakeDeviceSource{}

		scheduler := NewScheduler(rules, devices, engine, time.Minute, testLogger())
		scheduler.runOnce(context.Background())

		assert.Empty(t, emitter.calls)
		assert.Empty(t, rules.markEvaluated)
	})

	t.Run("scoped rule evaluates only its named devices, no device lookup", func(t *testing.T) {
		reader := newFakeTelemetryReader()
		reader.points["temperature"] = numeric(95)

		cache := NewRuleCache(nil, testLogger())
		emitter := &fakeAlertEmitter{}
		engine := NewEngine(reader, cache, &fakeActiveAlertFinder{}, emitter, &fakeRuleTrigger{}, nil, testLogger())

		rule := newTestRule(tenantID)
		rule.Scope = domain.RuleScope{DeviceID: &deviceID}
		rules := &fakeRuleSource{rules: []*domain.Rule{rule}}
		devices := &fakeDeviceSource{}

		scheduler := NewScheduler(rules, devices, engine, time.Minute, testLogger())
		ids, err := scheduler.resolveDevices(context.Background(), rule)

		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{deviceID}, ids)
	})
}

func TestNewScheduler_DefaultsInterval(t *testing.T) {
	scheduler := NewScheduler(&fakeRuleSource{}, &fakeDeviceSource{}, nil, 0, testLogger())
	assert.Equal(t, DefaultEvaluationInterval, scheduler.interval)
}

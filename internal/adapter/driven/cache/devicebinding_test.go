package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

type fakeDeviceRepository struct {
	devices map[uuid.UUID]*domain.Device
	calls   int
}

func (f *fakeDeviceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDeviceRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	f.calls++
	d, ok := f.devices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeDeviceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	return nil, nil
}
func (f *fakeDeviceRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeDeviceRepository) Save(ctx context.Context, device *domain.Device) error   { return nil }
func (f *fakeDeviceRepository) Update(ctx context.Context, device *domain.Device) error { return nil }
func (f *fakeDeviceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return nil
}
func (f *fakeDeviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error {
	return nil
}

type fakeCache struct {
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}
func (f *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}
func (f *fakeCache) GetJSON(ctx context.Context, key string, dest any) error { return nil }
func (f *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}
func (f *fakeCache) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}
func (f *fakeCache) Publish(ctx context.Context, channel, message string) error { return nil }
func (f *fakeCache) Subscribe(ctx context.Context, channel string) (<-chan string, func() error) {
	ch := make(chan string)
	return ch, func() error { return nil }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeviceBindingCache_Resolve(t *testing.T) {
	deviceID, tenantID := uuid.New(), uuid.New()

	t.Run("falls back to the device repository on a full miss and populates both tiers", func(t *testing.T) {
		devices := &fakeDeviceRepository{devices: map[uuid.UUID]*domain.Device{
			deviceID: {ID: deviceID, TenantID: tenantID},
		}}
		remote := newFakeCache()
		c := NewDeviceBindingCache(remote, devices, testLogger())

		got, err := c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
		assert.Equal(t, 1, devices.calls)
		assert.Equal(t, tenantID.String(), remote.values[remoteKey(deviceID)])
	})

	t.Run("second resolve hits the local fast path, no repository call", func(t *testing.T) {
		devices := &fakeDeviceRepository{devices: map[uuid.UUID]*domain.Device{
			deviceID: {ID: deviceID, TenantID: tenantID},
		}}
		c := NewDeviceBindingCache(newFakeCache(), devices, testLogger())

		_, err := c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)
		_, err = c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)

		assert.Equal(t, 1, devices.calls)
	})

	t.Run("remote hit populates the local tier without a repository call", func(t *testing.T) {
		devices := &fakeDeviceRepository{devices: map[uuid.UUID]*domain.Device{}}
		remote := newFakeCache()
		remote.values[remoteKey(deviceID)] = tenantID.String()
		c := NewDeviceBindingCache(remote, devices, testLogger())

		got, err := c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)
		assert.Equal(t, tenantID, got)
		assert.Equal(t, 0, devices.calls)
	})

	t.Run("unknown device returns an error", func(t *testing.T) {
		devices := &fakeDeviceRepository{devices: map[uuid.UUID]*domain.Device{}}
		c := NewDeviceBindingCache(newFakeCache(), devices, testLogger())

		_, err := c.Resolve(context.Background(), uuid.New())
		require.Error(t, err)
	})

	t.Run("invalidate forces a fresh resolve", func(t *testing.T) {
		devices := &fakeDeviceRepository{devices: map[uuid.UUID]*domain.Device{
			deviceID: {ID: deviceID, TenantID: tenantID},
		}}
		remote := newFakeCache()
		c := NewDeviceBindingCache(remote, devices, testLogger())

		_, err := c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)

		c.Invalidate(context.Background(), deviceID)
		delete(remote.values, remoteKey(deviceID))

		_, err = c.Resolve(context.Background(), deviceID)
		require.NoError(t, err)
		assert.Equal(t, 2, devices.calls)
	})
}

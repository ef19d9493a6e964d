package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func TestAuditService_List(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns paginated logs and sets tenant context", func(t *testing.T) {
		audit := mocks.NewMockAuditRepository()
		audit.AddLog(&domain.AuditLog{ID: uuid.New(), TenantID: tenantID, EventType: domain.AuditEventTenantCreated})
		audit.AddLog(&domain.AuditLog{ID: uuid.New(), TenantID: tenantID, EventType: domain.AuditEventTenantUpdated})
		tenantSetter := mocks.NewMockTenantContextSetter()
		svc := NewAuditService(audit, tenantSetter)

		result, err := svc.List(ctx, tenantID, 1, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Total)
		assert.Len(t, result.Logs, 2)
		assert.True(t, tenantSetter.SetCalled)
	})

	t.Run("excludes logs belonging to other tenants", func(t *testing.T) {
		audit := mocks.NewMockAuditRepository()
		audit.AddLog(&domain.AuditLog{ID: uuid.New(), TenantID: uuid.New()})
		svc := NewAuditService(audit, mocks.NewMockTenantContextSetter())

		result, err := svc.List(ctx, tenantID, 1, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Total)
	})
}

func TestAuditService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the log without touching tenant context", func(t *testing.T) {
		audit := mocks.NewMockAuditRepository()
		logID := uuid.New()
		audit.AddLog(&domain.AuditLog{ID: logID, TenantID: uuid.New(), EventType: domain.AuditEventTenantCreated})
		tenantSetter := mocks.NewMockTenantContextSetter()
		svc := NewAuditService(audit, tenantSetter)

		result, err := svc.GetByID(ctx, logID)

		require.NoError(t, err)
		assert.Equal(t, logID, result.ID)
		assert.False(t, tenantSetter.SetCalled)
	})

	t.Run("returns an error when the log does not exist", func(t *testing.T) {
		svc := NewAuditService(mocks.NewMockAuditRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.GetByID(ctx, uuid.New())

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestAuditService_Log(t *testing.T) {
	ctx := context.Background()

	t.Run("saves an entry without touching tenant context", func(t *testing.T) {
		audit := mocks.NewMockAuditRepository()
		tenantSetter := mocks.NewMockTenantContextSetter()
		svc := NewAuditService(audit, tenantSetter)

		entry := &domain.AuditLog{TenantID: uuid.New(), EventType: domain.AuditEventTenantUserInvited, Action: "invite"}
		err := svc.Log(ctx, entry)

		require.NoError(t, err)
		assert.True(t, audit.SaveCalled)
		assert.False(t, tenantSetter.SetCalled)
		assert.NotEqual(t, uuid.Nil, entry.ID)
	})

	t.Run("propagates a save failure", func(t *testing.T) {
		audit := mocks.NewMockAuditRepository()
		audit.SaveErr = domain.ErrInternal
		svc := NewAuditService(audit, mocks.NewMockTenantContextSetter())

		err := svc.Log(ctx, &domain.AuditLog{TenantID: uuid.New()})

		assert.ErrorIs(t, err, domain.ErrInternal)
	})
}

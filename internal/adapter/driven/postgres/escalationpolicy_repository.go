package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// EscalationPolicyRepository implements port.EscalationPolicyRepository.
// Tiers are stored as a single jsonb column; the ladder is small and always
// read/written as a unit, so there is no benefit to normalizing it further.
type EscalationPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationPolicyRepository creates a new escalation policy repository.
func NewEscalationPolicyRepository(pool *pgxpool.Pool) *EscalationPolicyRepository {
	return &EscalationPolicyRepository{pool: pool}
}

func (r *EscalationPolicyRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, tiers FROM escalation_policies WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanEscalationPolicy(row)
}

func (r *EscalationPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.EscalationPolicy, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, name, tiers FROM escalation_policies WHERE tenant_id = $1
		ORDER BY name ASC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.EscalationPolicy
	for rows.Next() {
		p, err := scanEscalationPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (r *EscalationPolicyRepository) FindMatchingSeverity(ctx context.Context, tenantID uuid.UUID, sev domain.AlertSeverity) (*domain.EscalationPolicy, error) {
	policies, err := r.FindByTenant(ctx, tenantID, 100, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		for _, tier := range p.Tiers {
			if tier.AppliesTo(sev) {
				return p, nil
			}
		}
	}
	return nil, domain.ErrEscalationPolicyNotFound
}

func (r *EscalationPolicyRepository) Save(ctx context.Context, p *domain.EscalationPolicy) error {
	tiers, err := json.Marshal(p.Tiers)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO escalation_policies (id, tenant_id, name, tiers) VALUES ($1, $2, $3, $4)`,
		p.ID, p.TenantID, p.Name, tiers)
	return err
}

func (r *EscalationPolicyRepository) Update(ctx context.Context, p *domain.EscalationPolicy) error {
	tiers, err := json.Marshal(p.Tiers)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE escalation_policies SET name = $3, tiers = $4 WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, p.Name, tiers)
	return err
}

func (r *EscalationPolicyRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM escalation_policies WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func scanEscalationPolicy(row rowScanner) (*domain.EscalationPolicy, error) {
	var p domain.EscalationPolicy
	var tiersRaw []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &tiersRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEscalationPolicyNotFound
		}
		return nil, err
	}
	if len(tiersRaw) > 0 {
		if err := json.Unmarshal(tiersRaw, &p.Tiers); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

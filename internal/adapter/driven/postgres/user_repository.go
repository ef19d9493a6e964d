package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// UserRepository implements port.UserRepository.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, email, phone, password_verifier, system_admin, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, email, phone, password_verifier, system_admin, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, phone, password_verifier, system_admin)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.Phone, user.PasswordVerifier, user.SystemAdmin)
	return err
}

func (r *UserRepository) UpdatePasswordVerifier(ctx context.Context, id uuid.UUID, verifier string) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE users SET password_verifier = $2, updated_at = now() WHERE id = $1`,
		id, verifier)
	return err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordVerifier, &u.SystemAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

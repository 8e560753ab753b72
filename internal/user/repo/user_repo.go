package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const profileColumns = `id, username, full_name, phone_number, role, is_blocked, created_at`

// ListByRole returns profiles of the given role, newest first.
func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]*entity.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM users WHERE role = $1 ORDER BY created_at DESC`
	out := []*entity.Profile{}
	if err := r.db.SelectContext(ctx, &out, q, role); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts an account row and returns its profile. Duplicate
// usernames surface as the raw pq error for the service to classify.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, fullName string, phone *string, role string, createdBy *int64) (*entity.Profile, error) {
	const q = `INSERT INTO users (username, password_hash, full_name, phone_number, role, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + profileColumns
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, username, passwordHash, fullName, phone, role, createdBy); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetBlocked flips is_blocked for a checker row only.
func (r *UserRepo) SetBlocked(ctx context.Context, id int64, blocked bool) (*entity.Profile, error) {
	const q = `UPDATE users SET is_blocked = $1, updated_at = now()
		WHERE id = $2 AND role = $3
		RETURNING ` + profileColumns
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, blocked, id, entity.RoleChecker); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a checker row only; sql.ErrNoRows when the id is
// absent or not a checker.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role = $2`, id, entity.RoleChecker)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByUsername fetches a full account row, or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	const q = `SELECT id, username, password_hash, full_name, phone_number, role, is_blocked,
			created_by, created_at, updated_at
		FROM users WHERE username = $1`
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, username); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdatePasswordHash replaces the stored hash for a username.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, username, hash string) (*entity.Profile, error) {
	const q = `UPDATE users SET password_hash = $1, updated_at = now()
		WHERE username = $2
		RETURNING ` + profileColumns
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, hash, username); err != nil {
		return nil, err
	}
	return &p, nil
}

// CountByRole returns how many accounts hold the given role.
func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, err
	}
	return n, nil
}

package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Session is a persisted login session row backing a bearer token.
type Session struct {
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	Role      string    `db:"role"`
	ExpiresAt time.Time `db:"expires_at"`
}

// SessionRepo stores login sessions in the auth_sessions table so
// tokens can be validated and revoked server-side.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Save(ctx context.Context, token string, userID int64, role string, expiresAt time.Time) error {
	const q = `INSERT INTO auth_sessions (token, user_id, role, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, token, userID, role, expiresAt)
	return err
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*Session, error) {
	const q = `SELECT token, user_id, role, expires_at FROM auth_sessions WHERE token = $1`
	var s Session
	if err := r.db.GetContext(ctx, &s, q, token); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token)
	return err
}

// DeleteExpired prunes sessions past their expiry.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

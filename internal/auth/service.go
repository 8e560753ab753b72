package auth

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/auth/repo"
	"github.com/resivalidator/service-core/internal/user"
	userentity "github.com/resivalidator/service-core/internal/user/entity"
	"github.com/resivalidator/service-core/pkg/utilities"
)

const minPasswordLen = 6

// sentinel errors for common failure modes
var (
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrBlocked          = errors.New("account blocked")
	ErrPasswordTooShort = errors.New("password too short")
	ErrInvalidToken     = errors.New("invalid token")
)

// UserStore is the slice of the user store the auth flows need;
// user.Store satisfies it.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*userentity.User, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) (*userentity.Profile, error)
}

// SessionStore persists login sessions; *repo.SessionRepo satisfies it.
type SessionStore interface {
	Save(ctx context.Context, token string, userID int64, role string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*repo.Session, error)
	Delete(ctx context.Context, token string) error
}

// Service performs login, password change and bearer-token
// validation. Tokens are HS256 JWTs whose sid claim references a
// session row; a token is only accepted while that row exists and is
// unexpired, so revocation is immediate.
type Service struct {
	users    UserStore
	sessions SessionStore
	hasher   user.PasswordHasher
	secret   []byte
	ttl      time.Duration
}

func NewService(db *sqlx.DB, userSvc *user.Service) *Service {
	return &Service{
		users:    userSvc.UserStore(),
		sessions: repo.NewSessionRepo(db),
		hasher:   userSvc.Hasher(),
		secret:   secretFromEnv(),
		ttl:      ttlFromEnv(),
	}
}

// NewServiceWith wires explicit dependencies; used by tests.
func NewServiceWith(users UserStore, sessions SessionStore, hasher user.PasswordHasher, secret []byte, ttl time.Duration) *Service {
	return &Service{users: users, sessions: sessions, hasher: hasher, secret: secret, ttl: ttl}
}

func secretFromEnv() []byte {
	s := os.Getenv("SESSION_SECRET")
	if s == "" {
		// dev fallback; set SESSION_SECRET in any real deployment
		s = "resi-validator-dev-secret"
	}
	return []byte(s)
}

func ttlFromEnv() time.Duration {
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return 24 * time.Hour
}

// LoginResult carries the profile fields the browser stores plus the
// bearer token.
type LoginResult struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login checks the credentials and, on success, persists a session row
// and returns a signed token. Unknown usernames and wrong passwords
// are rejected identically; blocked accounts are rejected distinctly
// only after the credentials matched.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if u.IsBlocked {
		return nil, ErrBlocked
	}

	sid := utilities.NewKSUID()
	expiresAt := time.Now().Add(s.ttl)
	if err := s.sessions.Save(ctx, sid, u.ID, u.Role, expiresAt); err != nil {
		return nil, err
	}
	token, err := s.sign(u, sid, expiresAt)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.FullName,
		Role:      u.Role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) sign(u *userentity.User, sid string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      fmt.Sprintf("%d", u.ID),
		"username": u.Username,
		"role":     u.Role,
		"sid":      sid,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Claims is the validated identity attached to a request.
type Claims struct {
	UserID   int64
	Username string
	Role     string
	SID      string
}

// Validate parses and verifies a bearer token and confirms its session
// row still exists and is unexpired.
func (s *Service) Validate(ctx context.Context, token string) (*Claims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil, ErrInvalidToken
	}
	session, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidToken
	}
	out := &Claims{SID: sid, UserID: session.UserID, Role: session.Role}
	if v, ok := claims["username"].(string); ok {
		out.Username = v
	}
	return out, nil
}

// Logout revokes the token's session. Best-effort: invalid tokens are
// ignored so the endpoint always succeeds.
func (s *Service) Logout(ctx context.Context, token string) {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return
	}
	_ = s.sessions.Delete(ctx, claims.SID)
}

// ChangePassword verifies the old password and stores a hash of the
// new one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (*userentity.Profile, error) {
	if len(newPassword) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, oldPassword) {
		return nil, ErrBadCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	return s.users.UpdatePasswordHash(ctx, username, hash)
}

// VerifyAdminKey compares the presented admin key against the
// configured one in constant time.
func VerifyAdminKey(presented, configured string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/resivalidator/service-core/internal/user/entity"
	"github.com/resivalidator/service-core/internal/user/repo"
	"github.com/resivalidator/service-core/pkg/database"
)

// sentinel errors for common failure modes
var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Store is the data-access surface the service needs; *repo.UserRepo
// satisfies it.
type Store interface {
	ListByRole(ctx context.Context, role string) ([]*entity.Profile, error)
	Create(ctx context.Context, username, passwordHash, fullName string, phone *string, role string, createdBy *int64) (*entity.Profile, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) (*entity.Profile, error)
	Delete(ctx context.Context, id int64) error
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) (*entity.Profile, error)
	CountByRole(ctx context.Context, role string) (int, error)
}

// Service manages checker accounts and the bootstrap owner.
type Service struct {
	store  Store
	hasher PasswordHasher
}

func NewService(db *sqlx.DB) *Service {
	return &Service{store: repo.NewUserRepo(db), hasher: BcryptHasher{Cost: 12}}
}

func NewServiceWithStore(store Store, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{store: store, hasher: hasher}
}

// Store exposes the underlying store for the auth service.
func (s *Service) UserStore() Store { return s.store }

// Hasher exposes the configured hasher for the auth service.
func (s *Service) Hasher() PasswordHasher { return s.hasher }

func (s *Service) ListCheckers(ctx context.Context) ([]*entity.Profile, error) {
	return s.store.ListByRole(ctx, entity.RoleChecker)
}

// CreateChecker creates a checker account with the default initial
// password (DEFAULT_CHECKER_PASSWORD, falling back to "123"), stored
// hashed. The checker is expected to change it on first login.
func (s *Service) CreateChecker(ctx context.Context, fullName, username string, phone *string) (*entity.Profile, error) {
	initial := os.Getenv("DEFAULT_CHECKER_PASSWORD")
	if initial == "" {
		initial = "123"
	}
	hash, err := s.hasher.Hash(initial)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)
	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		if trimmed == "" {
			phone = nil
		} else {
			phone = &trimmed
		}
	}
	p, err := s.store.Create(ctx, username, hash, fullName, phone, entity.RoleChecker, nil)
	if err != nil {
		if database.IsUniqueViolation(err, "users_username_key") {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) SetBlocked(ctx context.Context, id int64, blocked bool) (*entity.Profile, error) {
	p, err := s.store.SetBlocked(ctx, id, blocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteChecker(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// EnsureOwner seeds an owner account on a fresh database so the admin
// UI has a way in. Credentials come from OWNER_USERNAME /
// OWNER_PASSWORD (defaults owner / owner123); no-op when any owner
// already exists.
func (s *Service) EnsureOwner(ctx context.Context, logger *zap.SugaredLogger) error {
	n, err := s.store.CountByRole(ctx, entity.RoleOwner)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	username := os.Getenv("OWNER_USERNAME")
	if username == "" {
		username = "owner"
	}
	password := os.Getenv("OWNER_PASSWORD")
	if password == "" {
		password = "owner123"
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, username, hash, "Owner", nil, entity.RoleOwner, nil); err != nil {
		if database.IsUniqueViolation(err, "users_username_key") {
			// lost a race with another booting instance; owner exists now
			return nil
		}
		return err
	}
	logger.Infow("seeded initial owner account", "username", username)
	return nil
}

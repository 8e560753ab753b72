package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/catalog/entity"
	"github.com/resivalidator/service-core/internal/catalog/repo"
	"github.com/resivalidator/service-core/pkg/database"
)

// sentinel errors for common failure modes
var (
	ErrNotFound      = errors.New("item not found")
	ErrDuplicateCode = errors.New("item code already exists")
	ErrCodeInUse     = errors.New("item code in use by resi")
)

// Store is the data-access surface the service needs; *repo.ItemRepo
// satisfies it.
type Store interface {
	List(ctx context.Context) ([]*entity.Item, error)
	GetByCode(ctx context.Context, code string) (*entity.Item, error)
	Create(ctx context.Context, code, name string, phone *string) (*entity.Item, error)
	UpdateGuarded(ctx context.Context, id int64, code, name, phone *string) (*entity.Item, error)
	DeleteGuarded(ctx context.Context, id int64) error
}

// Service encapsulates catalog business rules over a Store.
type Service struct {
	store Store
}

func NewService(db *sqlx.DB) *Service {
	return &Service{store: repo.NewItemRepo(db)}
}

func NewServiceWithStore(store Store) *Service { return &Service{store: store} }

func (s *Service) List(ctx context.Context) ([]*entity.Item, error) {
	return s.store.List(ctx)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*entity.Item, error) {
	it, err := s.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

func (s *Service) Create(ctx context.Context, code, name string, phone *string) (*entity.Item, error) {
	it, err := s.store.Create(ctx, code, name, phone)
	if err != nil {
		if database.IsUniqueViolation(err, "item_item_code_key") {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return it, nil
}

// Update applies the non-nil fields. Changing the code is refused
// while any receipt line references the current code.
func (s *Service) Update(ctx context.Context, id int64, code, name, phone *string) (*entity.Item, error) {
	it, err := s.store.UpdateGuarded(ctx, id, code, name, phone)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		case errors.Is(err, repo.ErrInUse):
			return nil, ErrCodeInUse
		case database.IsUniqueViolation(err, "item_item_code_key"):
			return nil, ErrDuplicateCode
		}
		return nil, err
	}
	return it, nil
}

// Delete removes an item unless it is referenced by receipt lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.DeleteGuarded(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, repo.ErrInUse):
		return ErrCodeInUse
	}
	return err
}

package user

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/resivalidator/service-core/internal/user/entity"
)

type fakeUserStore struct {
	owners    int
	createErr error

	createdUsername string
	createdHash     string
	createdRole     string
	createdPhone    *string
}

func (f *fakeUserStore) ListByRole(context.Context, string) ([]*entity.Profile, error) {
	return nil, nil
}

func (f *fakeUserStore) Create(_ context.Context, username, passwordHash, fullName string, phone *string, role string, _ *int64) (*entity.Profile, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdUsername = username
	f.createdHash = passwordHash
	f.createdRole = role
	f.createdPhone = phone
	return &entity.Profile{ID: 1, Username: username, FullName: fullName, Role: role}, nil
}

func (f *fakeUserStore) SetBlocked(context.Context, int64, bool) (*entity.Profile, error) {
	return nil, nil
}
func (f *fakeUserStore) Delete(context.Context, int64) error { return nil }
func (f *fakeUserStore) GetByUsername(context.Context, string) (*entity.User, error) {
	return nil, nil
}
func (f *fakeUserStore) UpdatePasswordHash(context.Context, string, string) (*entity.Profile, error) {
	return nil, nil
}
func (f *fakeUserStore) CountByRole(context.Context, string) (int, error) {
	return f.owners, nil
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("rahasia1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "rahasia1" {
		t.Fatal("hash must not equal the password")
	}
	if !h.Verify(hash, "rahasia1") {
		t.Fatal("Verify rejected the matching password")
	}
	if h.Verify(hash, "salah123") {
		t.Fatal("Verify accepted a wrong password")
	}
}

func TestCreateCheckerTrimsAndHashes(t *testing.T) {
	store := &fakeUserStore{}
	svc := NewServiceWithStore(store, BcryptHasher{Cost: bcrypt.MinCost})
	phone := "  0812000  "
	p, err := svc.CreateChecker(context.Background(), "  Budi Santoso  ", "  budi  ", &phone)
	if err != nil {
		t.Fatalf("CreateChecker: %v", err)
	}
	if p.Username != "budi" || p.FullName != "Budi Santoso" {
		t.Fatalf("fields not trimmed: %q %q", p.Username, p.FullName)
	}
	if store.createdPhone == nil || *store.createdPhone != "0812000" {
		t.Fatalf("phone not trimmed: %v", store.createdPhone)
	}
	if store.createdRole != entity.RoleChecker {
		t.Fatalf("role = %q", store.createdRole)
	}
	// default password "123" must be stored hashed
	if store.createdHash == "123" {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(store.createdHash), []byte("123")) != nil {
		t.Fatal("stored hash does not verify the default password")
	}
}

func TestCreateCheckerBlankPhoneBecomesNil(t *testing.T) {
	store := &fakeUserStore{}
	svc := NewServiceWithStore(store, BcryptHasher{Cost: bcrypt.MinCost})
	phone := "   "
	if _, err := svc.CreateChecker(context.Background(), "Budi", "budi", &phone); err != nil {
		t.Fatalf("CreateChecker: %v", err)
	}
	if store.createdPhone != nil {
		t.Fatalf("blank phone should be stored as NULL, got %q", *store.createdPhone)
	}
}

func TestCreateCheckerMapsDuplicateUsername(t *testing.T) {
	store := &fakeUserStore{createErr: &pq.Error{Code: "23505", Constraint: "users_username_key"}}
	svc := NewServiceWithStore(store, BcryptHasher{Cost: bcrypt.MinCost})
	_, err := svc.CreateChecker(context.Background(), "Budi", "budi", nil)
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestEnsureOwnerSeedsOnce(t *testing.T) {
	store := &fakeUserStore{owners: 0}
	svc := NewServiceWithStore(store, BcryptHasher{Cost: bcrypt.MinCost})
	if err := svc.EnsureOwner(context.Background(), zap.NewNop().Sugar()); err != nil {
		t.Fatalf("EnsureOwner: %v", err)
	}
	if store.createdRole != entity.RoleOwner || store.createdUsername != "owner" {
		t.Fatalf("seeded %q as %q", store.createdUsername, store.createdRole)
	}

	again := &fakeUserStore{owners: 1}
	svc = NewServiceWithStore(again, BcryptHasher{Cost: bcrypt.MinCost})
	if err := svc.EnsureOwner(context.Background(), zap.NewNop().Sugar()); err != nil {
		t.Fatalf("EnsureOwner with existing owner: %v", err)
	}
	if again.createdUsername != "" {
		t.Fatal("must not create a second owner")
	}
}

func TestEnsureOwnerToleratesSeedRace(t *testing.T) {
	store := &fakeUserStore{owners: 0, createErr: &pq.Error{Code: "23505", Constraint: "users_username_key"}}
	svc := NewServiceWithStore(store, BcryptHasher{Cost: bcrypt.MinCost})
	if err := svc.EnsureOwner(context.Background(), zap.NewNop().Sugar()); err != nil {
		t.Fatalf("EnsureOwner should ignore the duplicate from a seed race: %v", err)
	}
}

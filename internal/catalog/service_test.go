package catalog

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"

	"github.com/resivalidator/service-core/internal/catalog/entity"
	"github.com/resivalidator/service-core/internal/catalog/repo"
)

// fakeItemStore returns canned results per method.
type fakeItemStore struct {
	item *entity.Item
	err  error
}

func (f *fakeItemStore) List(context.Context) ([]*entity.Item, error) {
	return []*entity.Item{f.item}, f.err
}
func (f *fakeItemStore) GetByCode(context.Context, string) (*entity.Item, error) {
	return f.item, f.err
}
func (f *fakeItemStore) Create(context.Context, string, string, *string) (*entity.Item, error) {
	return f.item, f.err
}
func (f *fakeItemStore) UpdateGuarded(context.Context, int64, *string, *string, *string) (*entity.Item, error) {
	return f.item, f.err
}
func (f *fakeItemStore) DeleteGuarded(context.Context, int64) error { return f.err }

func TestGetByCodeMapsNoRows(t *testing.T) {
	svc := NewServiceWithStore(&fakeItemStore{err: sql.ErrNoRows})
	_, err := svc.GetByCode(context.Background(), "LCD-A1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateMapsDuplicateCode(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "item_item_code_key"}
	svc := NewServiceWithStore(&fakeItemStore{err: dup})
	_, err := svc.Create(context.Background(), "LCD-A1", "LCD iPhone 11", nil)
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestUpdateErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		expected error
	}{
		{"missing", sql.ErrNoRows, ErrNotFound},
		{"referenced", repo.ErrInUse, ErrCodeInUse},
		{"duplicate", &pq.Error{Code: "23505", Constraint: "item_item_code_key"}, ErrDuplicateCode},
	}
	for _, tc := range cases {
		svc := NewServiceWithStore(&fakeItemStore{err: tc.storeErr})
		code := "LCD-B2"
		_, err := svc.Update(context.Background(), 1, &code, nil, nil)
		if !errors.Is(err, tc.expected) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, err)
		}
	}
}

func TestDeleteErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		expected error
	}{
		{"ok", nil, nil},
		{"missing", sql.ErrNoRows, ErrNotFound},
		{"referenced", repo.ErrInUse, ErrCodeInUse},
	}
	for _, tc := range cases {
		svc := NewServiceWithStore(&fakeItemStore{err: tc.storeErr})
		err := svc.Delete(context.Background(), 1)
		if tc.expected == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.expected) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expected, err)
		}
	}
}

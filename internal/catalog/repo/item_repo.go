package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/resivalidator/service-core/internal/catalog/entity"
)

// ErrInUse is returned when a mutation is blocked because receipt
// lines still reference the item's code.
var ErrInUse = errors.New("item code referenced by resi_items")

// ItemRepo provides data access for the item table using sqlx.
type ItemRepo struct {
	db *sqlx.DB
}

func NewItemRepo(db *sqlx.DB) *ItemRepo { return &ItemRepo{db: db} }

const itemColumns = `id, item_code, item_name, compatible_phone, created_at, updated_at`

// List returns the full catalog ordered by item_code.
func (r *ItemRepo) List(ctx context.Context) ([]*entity.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM item ORDER BY item_code ASC`
	items := []*entity.Item{}
	if err := r.db.SelectContext(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByCode fetches one item by its code, or sql.ErrNoRows.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*entity.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM item WHERE item_code = $1`
	var it entity.Item
	if err := r.db.GetContext(ctx, &it, q, code); err != nil {
		return nil, err
	}
	return &it, nil
}

// Create inserts a catalog row and returns it. Unique violations on
// item_code surface as the raw pq error for the service to classify.
func (r *ItemRepo) Create(ctx context.Context, code, name string, phone *string) (*entity.Item, error) {
	const q = `INSERT INTO item (item_code, item_name, compatible_phone)
		VALUES ($1, $2, $3) RETURNING ` + itemColumns
	var it entity.Item
	if err := r.db.GetContext(ctx, &it, q, code, name, phone); err != nil {
		return nil, err
	}
	return &it, nil
}

// UpdateGuarded applies the new field values to an item. The row is
// locked for the duration of the transaction and, when the code is
// changing, the reference count in resi_items is re-checked under
// that lock; a positive count aborts with ErrInUse.
func (r *ItemRepo) UpdateGuarded(ctx context.Context, id int64, code, name, phone *string) (*entity.Item, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current entity.Item
	const sel = `SELECT ` + itemColumns + ` FROM item WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, sel, id); err != nil {
		return nil, err
	}

	nextCode := current.ItemCode
	if code != nil && *code != "" {
		nextCode = *code
	}
	nextName := current.ItemName
	if name != nil && *name != "" {
		nextName = *name
	}
	nextPhone := current.CompatiblePhone
	if phone != nil {
		nextPhone = phone
	}

	if nextCode != current.ItemCode {
		var cnt int
		const used = `SELECT COUNT(*) FROM resi_items WHERE item_code = $1`
		if err := tx.GetContext(ctx, &cnt, used, current.ItemCode); err != nil {
			return nil, err
		}
		if cnt > 0 {
			return nil, ErrInUse
		}
	}

	var updated entity.Item
	const upd = `UPDATE item SET item_code = $1, item_name = $2, compatible_phone = $3, updated_at = now()
		WHERE id = $4 RETURNING ` + itemColumns
	if err := tx.GetContext(ctx, &updated, upd, nextCode, nextName, nextPhone, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteGuarded removes an item unless receipt lines reference its
// code. The check and the delete run in one transaction with the row
// locked.
func (r *ItemRepo) DeleteGuarded(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var code string
	if err := tx.GetContext(ctx, &code, `SELECT item_code FROM item WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	var cnt int
	if err := tx.GetContext(ctx, &cnt, `SELECT COUNT(*) FROM resi_items WHERE item_code = $1`, code); err != nil {
		return err
	}
	if cnt > 0 {
		return ErrInUse
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM item WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

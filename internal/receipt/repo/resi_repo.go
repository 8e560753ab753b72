package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/resivalidator/service-core/internal/receipt/entity"
)

// ErrVerified is returned when an edit or delete is blocked because at
// least one line of the receipt is already verified.
var ErrVerified = errors.New("resi has verified lines")

// UnknownItemError reports a line item_code that does not exist in the
// catalog during a replace.
type UnknownItemError struct {
	Code string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown item code %q", e.Code)
}

// ResiRepo provides data access for resi and resi_items using sqlx.
type ResiRepo struct {
	db *sqlx.DB
}

func NewResiRepo(db *sqlx.DB) *ResiRepo { return &ResiRepo{db: db} }

const resiColumns = `id, resi_number, total_items, created_at`

const lineColumns = `id, resi_id, item_code, item_name, quantity_item, scanned_count,
	verified, verified_at, verified_by, last_scan, last_scanned_code`

const lineColumnsRI = `ri.id, ri.resi_id, ri.item_code, ri.item_name, ri.quantity_item, ri.scanned_count,
	ri.verified, ri.verified_at, ri.verified_by, ri.last_scan, ri.last_scanned_code`

// Create inserts the header and all lines in one transaction. The
// header records len(lines) as total_items. A duplicate resi_number
// surfaces as the raw pq error for the service to classify.
func (r *ResiRepo) Create(ctx context.Context, number string, lines []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var header entity.Resi
	const insHeader = `INSERT INTO resi (resi_number, total_items) VALUES ($1, $2) RETURNING ` + resiColumns
	if err := tx.GetContext(ctx, &header, insHeader, number, len(lines)); err != nil {
		return nil, nil, err
	}

	inserted, err := insertLines(ctx, tx, header.ID, lines)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &header, inserted, nil
}

func insertLines(ctx context.Context, tx *sqlx.Tx, resiID int64, lines []entity.NewLine) ([]*entity.ResiItem, error) {
	const ins = `INSERT INTO resi_items (resi_id, item_code, item_name, quantity_item)
		VALUES ($1, $2, $3, $4) RETURNING ` + lineColumns
	inserted := make([]*entity.ResiItem, 0, len(lines))
	for _, l := range lines {
		var row entity.ResiItem
		if err := tx.GetContext(ctx, &row, ins, resiID, l.ItemCode, l.ItemName, l.Quantity); err != nil {
			return nil, err
		}
		inserted = append(inserted, &row)
	}
	return inserted, nil
}

// Get fetches one header by id, or sql.ErrNoRows.
func (r *ResiRepo) Get(ctx context.Context, id int64) (*entity.Resi, error) {
	var header entity.Resi
	if err := r.db.GetContext(ctx, &header, `SELECT `+resiColumns+` FROM resi WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &header, nil
}

// Lines returns a receipt's lines with the verifying checker's full
// name joined in.
func (r *ResiRepo) Lines(ctx context.Context, resiID int64) ([]*entity.ResiItemDetail, error) {
	const q = `SELECT ` + lineColumnsRI + `, u.full_name AS verified_by_name
		FROM resi_items ri
		LEFT JOIN users u ON ri.verified_by = u.username
		WHERE ri.resi_id = $1
		ORDER BY ri.id`
	rows := []*entity.ResiItemDetail{}
	if err := r.db.SelectContext(ctx, &rows, q, resiID); err != nil {
		return nil, err
	}
	return rows, nil
}

// PendingRow is one unverified line with its header, flattened.
type PendingRow struct {
	ResiID       int64     `db:"resi_id"`
	ResiNumber   string    `db:"resi_number"`
	TotalItems   int       `db:"total_items"`
	CreatedAt    time.Time `db:"created_at"`
	ResiItemID   int64     `db:"resi_item_id"`
	ItemCode     *string   `db:"item_code"`
	ItemName     *string   `db:"item_name"`
	QuantityItem int       `db:"quantity_item"`
	ScannedCount int       `db:"scanned_count"`
	Verified     bool      `db:"verified"`
}

// PendingRows returns every unverified line joined with its header,
// newest receipts first.
func (r *ResiRepo) PendingRows(ctx context.Context) ([]PendingRow, error) {
	const q = `SELECT r.id AS resi_id, r.resi_number, r.total_items, r.created_at,
			ri.id AS resi_item_id, ri.item_code, ri.item_name, ri.quantity_item, ri.scanned_count, ri.verified
		FROM resi r
		JOIN resi_items ri ON ri.resi_id = r.id
		WHERE ri.verified = false
		ORDER BY r.created_at DESC, ri.id ASC`
	rows := []PendingRow{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// AdminHeaderRow is a header with line counts for the admin listing.
type AdminHeaderRow struct {
	entity.Resi
	ItemCount     int `db:"item_count"`
	VerifiedCount int `db:"verified_count"`
}

// AdminHeaders returns every header with item and verified counts,
// newest first.
func (r *ResiRepo) AdminHeaders(ctx context.Context) ([]AdminHeaderRow, error) {
	const q = `SELECT r.id, r.resi_number, r.total_items, r.created_at,
			COUNT(ri.id)::int AS item_count,
			COALESCE(SUM(CASE WHEN ri.verified THEN 1 ELSE 0 END), 0)::int AS verified_count
		FROM resi r
		LEFT JOIN resi_items ri ON ri.resi_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC`
	rows := []AdminHeaderRow{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// AllLines returns every line with the checker name joined, ordered
// for grouping under their headers.
func (r *ResiRepo) AllLines(ctx context.Context) ([]*entity.ResiItemDetail, error) {
	const q = `SELECT ` + lineColumnsRI + `, u.full_name AS verified_by_name
		FROM resi_items ri
		LEFT JOIN users u ON ri.verified_by = u.username
		ORDER BY ri.resi_id ASC, ri.id ASC`
	rows := []*entity.ResiItemDetail{}
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceGuarded rewrites a receipt wholesale: header fields updated,
// all lines deleted and re-inserted with catalog-snapshotted names.
// The header row is locked for the whole transaction and the
// verified-line guard is re-checked under that lock; any verified line
// aborts with ErrVerified. Unknown item codes abort with
// *UnknownItemError.
func (r *ResiRepo) ReplaceGuarded(ctx context.Context, id int64, number string, lines []entity.NewLine) (*entity.Resi, []*entity.ResiItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.GetContext(ctx, &exists, `SELECT id FROM resi WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, nil, err
	}
	var verifiedCount int
	if err := tx.GetContext(ctx, &verifiedCount,
		`SELECT COUNT(*) FROM resi_items WHERE resi_id = $1 AND verified = true`, id); err != nil {
		return nil, nil, err
	}
	if verifiedCount > 0 {
		return nil, nil, ErrVerified
	}

	codes := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.ItemCode != nil && *l.ItemCode != "" {
			codes = append(codes, *l.ItemCode)
		}
	}
	nameByCode := map[string]string{}
	if len(codes) > 0 {
		type lookupRow struct {
			ItemCode string `db:"item_code"`
			ItemName string `db:"item_name"`
		}
		found := []lookupRow{}
		const lookup = `SELECT item_code, item_name FROM item WHERE item_code = ANY($1)`
		if err := tx.SelectContext(ctx, &found, lookup, pq.Array(codes)); err != nil {
			return nil, nil, err
		}
		for _, row := range found {
			nameByCode[row.ItemCode] = row.ItemName
		}
		for _, code := range codes {
			if _, ok := nameByCode[code]; !ok {
				return nil, nil, &UnknownItemError{Code: code}
			}
		}
	}

	var header entity.Resi
	const upd = `UPDATE resi SET resi_number = $1, total_items = $2 WHERE id = $3 RETURNING ` + resiColumns
	if err := tx.GetContext(ctx, &header, upd, number, len(lines), id); err != nil {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resi_items WHERE resi_id = $1`, id); err != nil {
		return nil, nil, err
	}

	snapshotted := make([]entity.NewLine, len(lines))
	for i, l := range lines {
		snapshotted[i] = l
		if l.ItemCode != nil {
			if name, ok := nameByCode[*l.ItemCode]; ok {
				nameCopy := name
				snapshotted[i].ItemName = &nameCopy
			}
		}
	}
	inserted, err := insertLines(ctx, tx, id, snapshotted)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &header, inserted, nil
}

// DeleteGuarded removes a receipt (lines cascade) unless any line is
// verified. Guard and delete share one transaction with the header
// locked.
func (r *ResiRepo) DeleteGuarded(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.GetContext(ctx, &exists, `SELECT id FROM resi WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	var verifiedCount int
	if err := tx.GetContext(ctx, &verifiedCount,
		`SELECT COUNT(*) FROM resi_items WHERE resi_id = $1 AND verified = true`, id); err != nil {
		return err
	}
	if verifiedCount > 0 {
		return ErrVerified
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resi WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLine fetches one line by id, or sql.ErrNoRows.
func (r *ResiRepo) GetLine(ctx context.Context, id int64) (*entity.ResiItem, error) {
	var row entity.ResiItem
	if err := r.db.GetContext(ctx, &row, `SELECT `+lineColumns+` FROM resi_items WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// RecordMismatch stamps the failed attempt without touching the
// verified state or the scan counter.
func (r *ResiRepo) RecordMismatch(ctx context.Context, id int64, scanned string) (*entity.ResiItem, error) {
	const q = `UPDATE resi_items SET last_scan = now(), last_scanned_code = $1
		WHERE id = $2 RETURNING ` + lineColumns
	var row entity.ResiItem
	if err := r.db.GetContext(ctx, &row, q, scanned, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// RecordMatch performs the conditional atomic increment: the counter
// advances only while below quantity_item, and the line flips to
// verified in the same statement when the incremented count reaches
// it. Returns applied=false when the line was already fully scanned,
// leaving the row untouched.
func (r *ResiRepo) RecordMatch(ctx context.Context, id int64, scanned string, checker *string) (*entity.ResiItem, bool, error) {
	const q = `UPDATE resi_items SET
			scanned_count = scanned_count + 1,
			last_scan = now(),
			last_scanned_code = $1,
			verified = (scanned_count + 1 >= quantity_item),
			verified_at = CASE WHEN scanned_count + 1 >= quantity_item THEN now() ELSE verified_at END,
			verified_by = CASE WHEN scanned_count + 1 >= quantity_item THEN $2 ELSE verified_by END
		WHERE id = $3 AND scanned_count < quantity_item
		RETURNING ` + lineColumns
	var row entity.ResiItem
	err := r.db.GetContext(ctx, &row, q, scanned, checker, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &row, true, nil
}

// HistoryRow is one verified line with its header for the checker
// history view.
type HistoryRow struct {
	ResiItemID   int64      `db:"resi_item_id"`
	ResiID       int64      `db:"resi_id"`
	ResiNumber   string     `db:"resi_number"`
	ItemCode     *string    `db:"item_code"`
	ItemName     *string    `db:"item_name"`
	QuantityItem int        `db:"quantity_item"`
	Verified     bool       `db:"verified"`
	VerifiedAt   *time.Time `db:"verified_at"`
	VerifiedBy   string     `db:"verified_by"`
}

// HistoryRows returns the lines verified by a checker, most recent
// verification first.
func (r *ResiRepo) HistoryRows(ctx context.Context, username string) ([]HistoryRow, error) {
	const q = `SELECT ri.id AS resi_item_id, ri.resi_id, r.resi_number,
			ri.item_code, ri.item_name, ri.quantity_item, ri.verified, ri.verified_at, ri.verified_by
		FROM resi_items ri
		JOIN resi r ON ri.resi_id = r.id
		WHERE ri.verified_by = $1
		ORDER BY ri.verified_at DESC`
	rows := []HistoryRow{}
	if err := r.db.SelectContext(ctx, &rows, q, username); err != nil {
		return nil, err
	}
	return rows, nil
}

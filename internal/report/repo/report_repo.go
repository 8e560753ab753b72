package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DayRow is one calendar day's receipt totals. A receipt counts as
// verified only when every one of its lines is verified; a receipt
// with no lines counts as pending (COALESCE over the empty bool_and).
type DayRow struct {
	Day          time.Time `db:"day"`
	TotalResi    int       `db:"total_resi"`
	VerifiedResi int       `db:"verified_resi"`
	PendingResi  int       `db:"pending_resi"`
}

// ReportRepo computes read-only aggregates over resi and resi_items.
type ReportRepo struct {
	db *sqlx.DB
}

func NewReportRepo(db *sqlx.DB) *ReportRepo { return &ReportRepo{db: db} }

// Today returns the aggregate for receipts created today. Always one
// row; zero counts when nothing was created yet.
func (r *ReportRepo) Today(ctx context.Context) (*DayRow, error) {
	const q = `WITH per_resi AS (
			SELECT r.id, r.created_at::date AS day,
				COALESCE(bool_and(ri.verified), false) AS all_verified
			FROM resi r
			LEFT JOIN resi_items ri ON ri.resi_id = r.id
			WHERE r.created_at::date = CURRENT_DATE
			GROUP BY r.id, r.created_at::date
		)
		SELECT CURRENT_DATE AS day,
			COUNT(*)::int AS total_resi,
			COALESCE(SUM(CASE WHEN all_verified THEN 1 ELSE 0 END), 0)::int AS verified_resi,
			COALESCE(SUM(CASE WHEN NOT all_verified THEN 1 ELSE 0 END), 0)::int AS pending_resi
		FROM per_resi`
	var row DayRow
	if err := r.db.GetContext(ctx, &row, q); err != nil {
		return nil, err
	}
	return &row, nil
}

// Daily returns per-day aggregates for the most recent days, newest
// first, limited to the given day count.
func (r *ReportRepo) Daily(ctx context.Context, days int) ([]DayRow, error) {
	const q = `WITH per_resi AS (
			SELECT r.id, r.created_at::date AS day,
				COALESCE(bool_and(ri.verified), false) AS all_verified
			FROM resi r
			LEFT JOIN resi_items ri ON ri.resi_id = r.id
			GROUP BY r.id, r.created_at::date
		), daily AS (
			SELECT day,
				COUNT(*)::int AS total_resi,
				COALESCE(SUM(CASE WHEN all_verified THEN 1 ELSE 0 END), 0)::int AS verified_resi
			FROM per_resi
			GROUP BY day
		)
		SELECT day,
			total_resi,
			verified_resi,
			(total_resi - verified_resi)::int AS pending_resi
		FROM daily
		ORDER BY day DESC
		LIMIT $1`
	rows := []DayRow{}
	if err := r.db.SelectContext(ctx, &rows, q, days); err != nil {
		return nil, err
	}
	return rows, nil
}

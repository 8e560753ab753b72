package entity

import "time"

// Resi is a shipment receipt header. total_items is the declared line
// count recorded at creation time.
type Resi struct {
	ID         int64     `db:"id" json:"id"`
	ResiNumber string    `db:"resi_number" json:"resi_number"`
	TotalItems int       `db:"total_items" json:"total_items"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ResiItem is one declared line on a receipt. item_name is a snapshot
// taken from the catalog when the line was written; later catalog
// renames do not propagate. scanned_count is the server-authoritative
// number of matching scans recorded so far, clamped to quantity_item.
type ResiItem struct {
	ID              int64      `db:"id" json:"id"`
	ResiID          int64      `db:"resi_id" json:"resi_id"`
	ItemCode        *string    `db:"item_code" json:"item_code"`
	ItemName        *string    `db:"item_name" json:"item_name"`
	QuantityItem    int        `db:"quantity_item" json:"quantity_item"`
	ScannedCount    int        `db:"scanned_count" json:"scanned_count"`
	Verified        bool       `db:"verified" json:"verified"`
	VerifiedAt      *time.Time `db:"verified_at" json:"verified_at"`
	VerifiedBy      *string    `db:"verified_by" json:"verified_by"`
	LastScan        *time.Time `db:"last_scan" json:"last_scan"`
	LastScannedCode *string    `db:"last_scanned_code" json:"last_scanned_code"`
}

// ResiItemDetail is a line joined with the verifying checker's full
// name for read endpoints.
type ResiItemDetail struct {
	ResiItem
	VerifiedByName *string `db:"verified_by_name" json:"verified_by_name"`
}

// NewLine is one line of a create or replace request after
// normalization (quantity defaulted, name snapshotted).
type NewLine struct {
	ItemCode *string
	ItemName *string
	Quantity int
}

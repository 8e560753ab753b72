package entity

import "time"

// Item is one row of the master catalog. item_code is what checkers
// scan against, so it is immutable once any receipt line references it.
type Item struct {
	ID              int64     `db:"id" json:"id"`
	ItemCode        string    `db:"item_code" json:"item_code"`
	ItemName        string    `db:"item_name" json:"item_name"`
	CompatiblePhone *string   `db:"compatible_phone" json:"compatible_phone"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

package entity

import "time"

// Roles. Fixed at creation; checkers are the only role created
// through the admin flow.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleChecker = "checker"
)

// User is a full account row. PasswordHash is a bcrypt hash and never
// serialized.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	PhoneNumber  *string   `db:"phone_number" json:"phone_number"`
	Role         string    `db:"role" json:"role"`
	IsBlocked    bool      `db:"is_blocked" json:"is_blocked"`
	CreatedBy    *int64    `db:"created_by" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// Profile is the projection returned to clients: everything except
// password material.
type Profile struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	FullName    string    `db:"full_name" json:"full_name"`
	PhoneNumber *string   `db:"phone_number" json:"phone_number"`
	Role        string    `db:"role" json:"role"`
	IsBlocked   bool      `db:"is_blocked" json:"is_blocked"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

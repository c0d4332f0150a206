package user

import (
	"database/sql"
	"time"
)

// Roles assignable to users.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the persisted account row. deleted_at is the soft-delete
// tombstone and never appears in the insert column list.
type User struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	Name         string       `db:"name" json:"name"`
	Role         string       `db:"role" json:"role"`
	PasswordHash string       `db:"password_hash" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
	DeletedAt    sql.NullTime `db:"deleted_at" json:"-"`
}

// TableName returns the backing table.
func (User) TableName() string {
	return "users"
}

// Columns lists the insertable columns in a stable order.
func (User) Columns() []string {
	return []string{"id", "email", "name", "role", "password_hash", "created_at", "updated_at"}
}

// StampCreated sets the creation timestamp.
func (u *User) StampCreated(t time.Time) {
	u.CreatedAt = t
}

// StampUpdated sets the update timestamp.
func (u *User) StampUpdated(t time.Time) {
	u.UpdatedAt = t
}

// ValidRole reports whether the role is assignable.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

package models

import "time"

// Well-known role names. Roles are data (see Role), but the admin name is
// structural: it bypasses the notice allow-list.
const (
	RoleNameAdmin   = "admin"
	RoleNameTeacher = "teacher"
	RoleNameStudent = "student"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	RoleID       string    `db:"role_id" json:"roleId"`
	RoleName     string    `db:"role_name" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Search string
	Page   int
	Limit  int
}

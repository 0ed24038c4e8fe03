package model

import "time"

// Role gates admin operations
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is an account. PasswordHash is a bcrypt hash and never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user may use back-office operations
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

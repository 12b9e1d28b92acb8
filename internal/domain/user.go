package domain

import "time"

// Role is the profile type of a user account.
type Role string

const (
	RoleCustomer     Role = "customer"
	RoleVeterinarian Role = "veterinarian"
	RoleBranch       Role = "branch"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVeterinarian, RoleBranch:
		return true
	}
	return false
}

// IsClinical reports whether the role belongs to clinic personnel.
func (r Role) IsClinical() bool {
	return r == RoleVeterinarian || r == RoleBranch
}

// User is an identity record. Users are deactivated, never deleted.
type User struct {
	ID           string
	Username     string
	Email        string
	Phone        *string
	PasswordHash string
	Role         Role
	IsActive     bool
	IsStaff      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package domain

import "time"

// Role is the authorization level carried by a user and its session token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an account in the user directory.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	FingerprintHash string
	Role            Role
	FirstName       string
	LastName        string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Identity is the verified caller attached to a request after token checks.
type Identity struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

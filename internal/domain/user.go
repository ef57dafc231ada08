package domain

import "time"

// Role enumerates participant roles in the ticket workflow.
type Role string

const (
	RoleUser         Role = "USER"
	RoleSupportAgent Role = "SUPPORT_AGENT"
	RoleAdmin        Role = "ADMIN"
)

// ValidRole reports whether the value is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleSupportAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role carries agent-level privileges.
func (r Role) IsStaff() bool {
	return r == RoleSupportAgent || r == RoleAdmin
}

// User is an authenticated participant. Disabled users keep their
// historical records but cannot log in or act.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

package entities

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Role is the RBAC role of a user
type Role string

const (
	RoleAdmin              Role = "ADMIN"
	RoleExecutive          Role = "EXECUTIVE"
	RoleProjectManager     Role = "PROJECT_MANAGER"
	RoleStoreKeeper        Role = "STORE_KEEPER"
	RoleProcurementOfficer Role = "PROCUREMENT_OFFICER"
	RoleSiteWorker         Role = "SITE_WORKER"
	RoleSiteEngineer       Role = "SITE_ENGINEER"
	RoleInventoryManager   Role = "INVENTORY_MANAGER"
)

// DefaultRegistrationRole is assigned to self-registered users
const DefaultRegistrationRole = RoleSiteWorker

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleExecutive, RoleProjectManager, RoleStoreKeeper,
		RoleProcurementOfficer, RoleSiteWorker, RoleSiteEngineer, RoleInventoryManager:
		return true
	}
	return false
}

// User is an account that can sign in to the system
type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                Role       `json:"role"`
	IsActive            bool       `json:"isActive"`
	FailedLoginAttempts int        `json:"-"`
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiry    *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// NormalizeEmail lower-cases and trims an address for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the invariants of a user record
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("user name cannot be empty")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid email %q", u.Email)
	}
	if !u.Role.IsValid() {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	return nil
}

// HasRole reports whether the user holds one of roles
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// ActivityLog records a user action, one entry per authenticated request
type ActivityLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"user"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"timestamp"`
}

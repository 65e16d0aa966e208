package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's authorization level.
type Role string

const (
	RoleOwner Role = "owner" // Dueño
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// CanCorrectBalances reports whether the role may set the cash drawer
// balance or bulk-delete records.
func (r Role) CanCorrectBalances() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's login (unique).
	Email string

	// DisplayName is the name shown in the UI.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	Role Role

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string, role Role) *User {
	now := time.Now().Unix()
	if role == "" {
		role = RoleStaff
	}
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Session is the explicit caller context handed to every service operation:
// who is acting and on which site.
type Session struct {
	UserID string
	Email  string
	Role   Role
	SiteID int64
}

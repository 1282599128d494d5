package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role determines what a user may do against the workflows.
type Role string

const (
	RoleMember      Role = "member"
	RoleAffiliate   Role = "affiliate"
	RoleConciliator Role = "conciliator"
	RoleAdmin       Role = "admin"
)

// User is a registered marketplace participant. Each user owns exactly one
// wallet, created alongside the user at registration.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsConciliator reports whether the user may be assigned disputes.
func (u *User) IsConciliator() bool {
	return u.Role == RoleConciliator
}

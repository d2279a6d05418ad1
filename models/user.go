package models

import (
	"strings"
	"time"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Roles        string    `db:"roles" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RoleList always contains ROLE_USER.
func (u *User) RoleList() []string {
	roles := []string{RoleUser}
	for _, r := range strings.Split(u.Roles, ",") {
		r = strings.TrimSpace(r)
		if r != "" && r != RoleUser {
			roles = append(roles, r)
		}
	}
	return roles
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.RoleList() {
		if r == role {
			return true
		}
	}
	return false
}

// LoginAttempt tracks consecutive failed logins and the current lock.
type LoginAttempt struct {
	ID             int64      `db:"id" json:"-"`
	UserID         int64      `db:"user_id" json:"user_id"`
	FailedAttempts int        `db:"failed_attempts" json:"failed_attempts"`
	LockedUntil    *time.Time `db:"locked_until" json:"locked_until"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *LoginAttempt) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

func (a *LoginAttempt) Reset(now time.Time) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
}

package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle status of an account
type AccountStatus = string

const (
	// AccountStatusActive accounts are the only ones that may log in
	AccountStatusActive AccountStatus = "active"
	// AccountStatusLocked accounts rejected too many credentials recently
	AccountStatusLocked AccountStatus = "locked"
	// AccountStatusDisabled accounts were switched off by an operator
	AccountStatusDisabled AccountStatus = "disabled"
	// AccountStatusDeleted accounts are soft removed but keep their row
	AccountStatusDeleted AccountStatus = "deleted"
)

// ValidAccountStatus checks the status against the predefined set
func ValidAccountStatus(status AccountStatus) bool {
	switch status {
	case AccountStatusActive, AccountStatusLocked, AccountStatusDisabled, AccountStatusDeleted:
		return true
	default:
		return false
	}
}

// RoleGeneralUser is the default role assigned to provisioned accounts
const RoleGeneralUser = "ROLE_GENERAL_USER"

// Account is the account model
type Account struct {
	bun.BaseModel    `bun:"table:accounts,alias:acc"`
	ID               uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	LoginID          string        `bun:"login_id,notnull,unique" json:"login_id,omitempty"`
	Name             string        `bun:"name,notnull" json:"name,omitempty"`
	PasswordHash     string        `bun:"password_hash,notnull" json:"-"`
	Role             string        `bun:"role,notnull" json:"role,omitempty"`
	Status           AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	FailCount        int           `bun:"fail_count,notnull" json:"fail_count,omitempty"`
	IsFirstLogin     bool          `bun:"is_first_login,notnull" json:"is_first_login,omitempty"`
	LastLoginAt      *time.Time    `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	LockoutExpiresAt *time.Time    `bun:"lockout_expires_at,nullzero" json:"lockout_expires_at,omitempty"`
	CreatedAt        *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt        *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus backfills the default status for legacy rows
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusActive
	}
}

// IsActive reports whether the account may proceed to credential checks
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Lock moves the account to the locked status until the given expiry.
// The fail counter resets so a later unlock starts from a clean slate.
func (a *Account) Lock(expiresAt time.Time) {
	a.FailCount = 0
	a.Status = AccountStatusLocked
	a.LockoutExpiresAt = &expiresAt
}

// Unlock clears the lockout state and reactivates the account
func (a *Account) Unlock() {
	a.FailCount = 0
	a.Status = AccountStatusActive
	a.LockoutExpiresAt = nil
}

// ResetFailCount clears the consecutive failure counter
func (a *Account) ResetFailCount() {
	a.FailCount = 0
}

// RecordLoginTimestamp stores the moment of a fully successful login
func (a *Account) RecordLoginTimestamp(at time.Time) {
	a.LastLoginAt = &at
}

// ChangePassword replaces the credential hash and ends the first-login phase
func (a *Account) ChangePassword(hash string) {
	a.PasswordHash = hash
	a.IsFirstLogin = false
}

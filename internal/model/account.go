package model

import "time"

// Account roles.  Authorization checks the role column; the configured
// admin email only decides who is granted RoleAdmin.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Account represents a registered user as stored in the `accounts` table.
//
// Fields:
//
//	ID                – primary key identifier.
//	Email             – unique address, matched exactly as stored.
//	PasswordHash      – bcrypt hash of the password.
//	Credits           – prepaid balance, never negative.
//	Role              – USER or ADMIN.
//	ResetTokenHash    – SHA-256 hex digest of the active reset token (nullable).
//	ResetTokenExpires – expiry of the active reset token; set iff ResetTokenHash is.
//	CreatedAt         – registration timestamp.
type Account struct {
	ID                uint64     // accounts.id
	Email             string     // accounts.email
	PasswordHash      string     // accounts.password_hash
	Credits           int        // accounts.credits
	Role              string     // accounts.role
	ResetTokenHash    *string    // accounts.reset_token_hash (nullable)
	ResetTokenExpires *time.Time // accounts.reset_token_expires (nullable)
	CreatedAt         time.Time  // accounts.created_at
}

// IsAdmin reports whether the account holds the administrator role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

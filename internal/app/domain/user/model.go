package user

import "time"

// User represents an account holder. Username doubles as the login identity
// and may be an email address. PasswordHash is empty for accounts created
// through an identity provider.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Verified     bool
	// Token is the single-use slot shared by email verification and
	// password reset. Cleared once consumed.
	Token     string
	Profile   Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile holds the business-facing fields shown on invoices.
type Profile struct {
	Name         string
	BusinessName string
	Email        string
	Phone        string
	Address      string
	TaxNumber    string
}

// HasPassword reports whether the account can log in with credentials.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

package domain

import "time"

// Policy is an operator-supplied Rego module for package sessionguard.login.
// Enabled policies replace the built-in default.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}

// LoginInput is the data a login policy decides on.
type LoginInput struct {
	UserID             string
	TwoFactorMandatory bool
	TwoFactorEnabled   bool
}

// LoginDecision is the outcome of a login policy.
type LoginDecision struct {
	// SecondFactorRequired means a TOTP or backup code must be verified before a session is issued.
	SecondFactorRequired bool
	// EnrollmentRequired means the user must provision and confirm two-factor before logging in.
	EnrollmentRequired bool
}

// DefaultLoginDecision mirrors the built-in policy. Used when evaluation fails.
func DefaultLoginDecision(in LoginInput) LoginDecision {
	return LoginDecision{
		SecondFactorRequired: in.TwoFactorEnabled,
		EnrollmentRequired:   in.TwoFactorMandatory && !in.TwoFactorEnabled,
	}
}

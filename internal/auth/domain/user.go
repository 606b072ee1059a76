package domain

import "time"

type User struct {
	ID                    string
	Email                 string
	PasswordHash          string
	EmailVerified         bool
	VerificationToken     *string
	VerificationExpiresAt *time.Time
	FailedLoginAttempts   int
	LockedUntil           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

type PasswordResetToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

package domain

//go:generate mockgen -destination=../../mocks/mock_user_repository.go -package=mocks github.com/maxjeffwell/microservices-platform/internal/auth/domain UserRepository
//go:generate mockgen -destination=../../mocks/mock_mailer.go -package=mocks github.com/maxjeffwell/microservices-platform/internal/auth/domain Mailer

import (
	"context"
	"time"
)

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error

	// IncrementFailedAttempts bumps the failed-login counter in a single
	// atomic update. When the new count reaches threshold the same statement
	// sets locked_until to lockUntil. Returns the new count and the current
	// locked_until value.
	IncrementFailedAttempts(ctx context.Context, userID string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	ResetLockout(ctx context.Context, userID string) error

	SetVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	MarkEmailVerified(ctx context.Context, userID string) error

	StoreRefreshToken(ctx context.Context, rt *RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllRefreshTokensByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)

	// CreateResetToken marks every unused reset token for the user as used
	// and inserts the new one inside a single transaction, so two concurrent
	// requests can never both leave a live token behind.
	CreateResetToken(ctx context.Context, prt *PasswordResetToken) error
	GetResetToken(ctx context.Context, token string) (*PasswordResetToken, error)
	CountRecentResetTokens(ctx context.Context, userID string, since time.Time) (int, error)

	// ConsumePasswordReset performs the reset as one transaction: marks the
	// token used (failing with ErrResetTokenUsed if a concurrent consume won),
	// swaps the password hash, clears lockout state and revokes every refresh
	// token for the user.
	ConsumePasswordReset(ctx context.Context, tokenID, userID, newPasswordHash string) error
	DeleteExpiredResetTokens(ctx context.Context) (int64, error)
}

// Mailer is the outbound delivery collaborator. Implementations may send
// real mail or just log the payload; callers treat failures as non-fatal on
// enumeration-sensitive paths.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
	SendLockoutNotice(ctx context.Context, email string, until time.Time) error
}

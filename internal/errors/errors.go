package errors

import (
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrUserNotFound       = errors.New("user not found")

	ErrAccessTokenExpired = errors.New("access token expired")
	ErrAccessTokenInvalid = errors.New("access token invalid")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	ErrResetTokenInvalid = errors.New("password reset token invalid")
	ErrResetTokenUsed    = errors.New("password reset token already used")
	ErrResetTokenExpired = errors.New("password reset token expired")

	ErrVerificationTokenInvalid = errors.New("email verification token invalid")
	ErrVerificationTokenExpired = errors.New("email verification token expired")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
)

package constant

const (
	DefaultTokenType = "Bearer"

	// Reasons reported by the reset-token validation endpoint, in
	// priority order: not_found, then already_used, then expired.
	ResetReasonNotFound    = "not_found"
	ResetReasonAlreadyUsed = "already_used"
	ResetReasonExpired     = "expired"

	// Generic acks for enumeration-sensitive endpoints. These bodies must
	// be identical whether or not the email exists.
	ForgotPasswordMessage     = "If that email is registered, a password reset link has been sent."
	ResendVerificationMessage = "If that email is registered and unverified, a verification link has been sent."
	PasswordResetMessage      = "Password has been reset. Please sign in again."
)

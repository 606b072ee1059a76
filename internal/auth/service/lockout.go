package service

import (
	"time"

	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
)

// LockoutStatus is the read-time view of a user's lockout state. A lock is
// never explicitly cleared when it lapses; it simply stops being reported
// once now passes LockedUntil. The stored fields are only reset on the next
// successful login, a password reset, or an admin unlock.
type LockoutStatus struct {
	Locked            bool
	LockedUntil       time.Time
	AttemptsRemaining int
}

// EvaluateLockout derives the lockout state from a fetched user row. Pure
// policy: persistence of counter changes happens elsewhere.
func EvaluateLockout(user *domain.User, now time.Time, threshold int) LockoutStatus {
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return LockoutStatus{Locked: true, LockedUntil: *user.LockedUntil}
	}

	remaining := threshold - user.FailedLoginAttempts
	if remaining < 0 {
		remaining = 0
	}

	return LockoutStatus{AttemptsRemaining: remaining}
}

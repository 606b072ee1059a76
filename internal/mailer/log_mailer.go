package mailer

import (
	"context"
	"fmt"
	"log"
	"time"
)

// LogMailer writes the outbound message to the process log instead of
// delivering it. Real delivery is handled by an external collaborator; this
// implementation keeps the token links visible in development.
type LogMailer struct {
	baseURL string
}

func NewLogMailer(baseURL string) *LogMailer {
	return &LogMailer{baseURL: baseURL}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	log.Printf("mail: verification link for %s: %s", email,
		fmt.Sprintf("%s/verify-email?token=%s", m.baseURL, token))
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, email, token string) error {
	log.Printf("mail: password reset link for %s: %s", email,
		fmt.Sprintf("%s/reset-password?token=%s", m.baseURL, token))
	return nil
}

func (m *LogMailer) SendLockoutNotice(_ context.Context, email string, until time.Time) error {
	log.Printf("mail: lockout notice for %s, locked until %s", email, until.Format(time.RFC3339))
	return nil
}

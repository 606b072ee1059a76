package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maxjeffwell/microservices-platform/config"
	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
	"github.com/maxjeffwell/microservices-platform/internal/auth/dto"
	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
	authconstant "github.com/maxjeffwell/microservices-platform/pkg/constant"
)

type PasswordResetService struct {
	repo         domain.UserRepository
	tokenService TokenGenerator
	mailer       domain.Mailer
	cfg          *config.Config
}

func NewPasswordResetService(repo domain.UserRepository, tokenService TokenGenerator,
	mailer domain.Mailer, cfg *config.Config) *PasswordResetService {
	return &PasswordResetService{
		repo:         repo,
		tokenService: tokenService,
		mailer:       mailer,
		cfg:          cfg,
	}
}

// Request issues a reset token for the given email. Unknown emails and
// rate-limited accounts are silent no-ops: the caller must answer with the
// same generic ack either way.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	now := time.Now()

	windowStart := now.Add(-time.Duration(s.cfg.ResetWindowMin) * time.Minute)
	recent, err := s.repo.CountRecentResetTokens(ctx, user.ID, windowStart)
	if err != nil {
		return err
	}
	if recent >= s.cfg.ResetMaxRequests {
		log.Printf("warn: reset request rate limit reached for user %s", user.ID)
		return nil
	}

	token, err := s.tokenService.NewOpaqueToken()
	if err != nil {
		return err
	}

	resetToken := &domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.cfg.ResetTokenTTLMin) * time.Minute),
		CreatedAt: now,
		Used:      false,
	}

	if err := s.repo.CreateResetToken(ctx, resetToken); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		log.Printf("warn: failed to send password reset email to %s: %v", user.Email, err)
	}

	return nil
}

// Validate reports whether a reset token is usable. Reasons are checked in
// priority order: not_found, then already_used, then expired.
func (s *PasswordResetService) Validate(ctx context.Context, token string) (*dto.ResetTokenStatus, error) {
	resetToken, err := s.repo.GetResetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if resetToken == nil {
		return &dto.ResetTokenStatus{Reason: authconstant.ResetReasonNotFound}, nil
	}

	if resetToken.Used {
		return &dto.ResetTokenStatus{Reason: authconstant.ResetReasonAlreadyUsed}, nil
	}

	if time.Now().After(resetToken.ExpiresAt) {
		return &dto.ResetTokenStatus{Reason: authconstant.ResetReasonExpired}, nil
	}

	return &dto.ResetTokenStatus{Valid: true}, nil
}

// Consume applies the reset: new password hash, token marked used, every
// refresh token revoked and lockout state cleared, all in one repository
// transaction so a partial failure cannot burn the token without changing
// the password.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) error {
	resetToken, err := s.repo.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if resetToken == nil {
		return autherror.ErrResetTokenInvalid
	}

	if resetToken.Used {
		return autherror.ErrResetTokenUsed
	}

	if time.Now().After(resetToken.ExpiresAt) {
		return autherror.ErrResetTokenExpired
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.repo.ConsumePasswordReset(ctx, resetToken.ID, resetToken.UserID, string(hashedPassword))
}

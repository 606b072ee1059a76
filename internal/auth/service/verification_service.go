package service

import (
	"context"
	"log"
	"time"

	"github.com/maxjeffwell/microservices-platform/config"
	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
)

type VerificationService struct {
	repo         domain.UserRepository
	tokenService TokenGenerator
	mailer       domain.Mailer
	cfg          *config.Config
}

func NewVerificationService(repo domain.UserRepository, tokenService TokenGenerator,
	mailer domain.Mailer, cfg *config.Config) *VerificationService {
	return &VerificationService{
		repo:         repo,
		tokenService: tokenService,
		mailer:       mailer,
		cfg:          cfg,
	}
}

// Issue stores a fresh verification token on the user row, overwriting any
// prior token, and mails the link.
func (s *VerificationService) Issue(ctx context.Context, user *domain.User) error {
	token, err := s.tokenService.NewOpaqueToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.VerificationTTLHours) * time.Hour)

	if err := s.repo.SetVerificationToken(ctx, user.ID, token, expiresAt); err != nil {
		return err
	}

	return s.mailer.SendVerificationEmail(ctx, user.Email, token)
}

// Consume marks the owning user verified and clears the token in a single
// update. A retry that lands after success but before the client saw it
// finds the user already verified, not an unknown token.
func (s *VerificationService) Consume(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrVerificationTokenInvalid
	}

	if user.EmailVerified {
		return nil, autherror.ErrEmailAlreadyVerified
	}

	if user.VerificationExpiresAt != nil && time.Now().After(*user.VerificationExpiresAt) {
		return nil, autherror.ErrVerificationTokenExpired
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	return user, nil
}

// Resend issues a new verification token for an unverified account. Unknown
// and already-verified emails are silent no-ops behind the generic ack.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}

	if err := s.Issue(ctx, user); err != nil {
		log.Printf("warn: failed to reissue verification token for user %s: %v", user.ID, err)
	}

	return nil
}

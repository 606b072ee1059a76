package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/maxjeffwell/microservices-platform/config"
	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
	"github.com/maxjeffwell/microservices-platform/internal/auth/dto"
	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
	authconstant "github.com/maxjeffwell/microservices-platform/pkg/constant"
)

type UserService struct {
	repo         domain.UserRepository
	tokenService TokenGenerator
	verification *VerificationService
	mailer       domain.Mailer
	cfg          *config.Config
}

func NewUserService(repo domain.UserRepository, tokenService TokenGenerator,
	verification *VerificationService, mailer domain.Mailer, cfg *config.Config) *UserService {
	return &UserService{
		repo:         repo,
		tokenService: tokenService,
		verification: verification,
		mailer:       mailer,
		cfg:          cfg,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*dto.AuthResponse, error) {
	email := NormalizeEmail(input.Email)

	existingUser, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	// Verification issuance is a side effect of sign-up; a delivery failure
	// must not fail the registration itself.
	if err := s.verification.Issue(ctx, user); err != nil {
		log.Printf("warn: failed to issue verification token for user %s: %v", user.ID, err)
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{User: toUserOutput(user), TokenResponse: *tokens}, nil
}

func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Same error as a wrong password: lookups never disclose existence.
		return nil, autherror.ErrInvalidCredentials
	}

	now := time.Now()

	// Pre-check: a live lock short-circuits before any password comparison.
	if status := EvaluateLockout(user, now, s.cfg.LockoutThreshold); status.Locked {
		return nil, autherror.ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		lockUntil := now.Add(time.Duration(s.cfg.LockoutMinutes) * time.Minute)

		attempts, lockedUntil, err := s.repo.IncrementFailedAttempts(ctx, user.ID,
			s.cfg.LockoutThreshold, lockUntil)
		if err != nil {
			return nil, err
		}

		if attempts >= s.cfg.LockoutThreshold && lockedUntil != nil {
			if err := s.mailer.SendLockoutNotice(ctx, user.Email, *lockedUntil); err != nil {
				log.Printf("warn: failed to send lockout notice to %s: %v", user.Email, err)
			}

			return nil, autherror.ErrAccountLocked
		}

		return nil, autherror.ErrInvalidCredentials
	}

	if err := s.repo.ResetLockout(ctx, user.ID); err != nil {
		return nil, err
	}

	tokens, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{User: toUserOutput(user), TokenResponse: *tokens}, nil
}

// Refresh mints a new access token from a stored refresh token. The refresh
// token itself is not rotated; it stays valid until its own expiry or an
// explicit revocation.
func (s *UserService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.RefreshResponse, error) {
	token, err := s.repo.GetRefreshToken(ctx, input.RefreshToken)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, autherror.ErrRefreshTokenNotFound
	}

	if token.Revoked {
		return nil, autherror.ErrRefreshTokenRevoked
	}

	if time.Now().After(token.ExpiresAt) {
		return nil, autherror.ErrRefreshTokenExpired
	}

	user, err := s.repo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrRefreshTokenNotFound
	}

	accessToken, _, err := s.tokenService.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &dto.RefreshResponse{
		AccessToken: accessToken,
		TokenType:   authconstant.DefaultTokenType,
		ExpiresIn:   int(s.tokenService.GetAccessTokenExpiry().Seconds()),
	}, nil
}

// Logout revokes a single refresh token. Revoking an unknown or
// already-revoked token is a no-op.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, refreshToken)
}

func (s *UserService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.RevokeAllRefreshTokensByUserID(ctx, userID)
}

// AdminUnlock forces the lockout reset regardless of current state.
func (s *UserService) AdminUnlock(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return autherror.ErrUserNotFound
	}

	return s.repo.ResetLockout(ctx, user.ID)
}

func (s *UserService) issueTokenPair(ctx context.Context, user *domain.User) (*dto.TokenResponse, error) {
	accessToken, _, err := s.tokenService.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenService.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()

	refreshTokenObj := &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(time.Duration(s.cfg.RefreshExpiryDays) * 24 * time.Hour),
		CreatedAt: now,
		Revoked:   false,
	}

	if err := s.repo.StoreRefreshToken(ctx, refreshTokenObj); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    authconstant.DefaultTokenType,
		ExpiresIn:    int(s.tokenService.GetAccessTokenExpiry().Seconds()),
	}, nil
}

func toUserOutput(user *domain.User) dto.UserOutput {
	return dto.UserOutput{
		ID:            user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/maxjeffwell/microservices-platform/config"
	"github.com/maxjeffwell/microservices-platform/internal/auth/domain"
	"github.com/maxjeffwell/microservices-platform/internal/auth/dto"
	"github.com/maxjeffwell/microservices-platform/internal/auth/service"
	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
	"github.com/maxjeffwell/microservices-platform/internal/mocks"
	authconstant "github.com/maxjeffwell/microservices-platform/pkg/constant"
)

func testConfig() *config.Config {
	return &config.Config{
		LockoutThreshold:     5,
		LockoutMinutes:       15,
		RefreshExpiryDays:    30,
		ResetTokenTTLMin:     60,
		ResetMaxRequests:     3,
		ResetWindowMin:       60,
		VerificationTTLHours: 24,
	}
}

func newUserService(ctrl *gomock.Controller, cfg *config.Config) (*service.UserService,
	*mocks.MockUserRepository, *mocks.MockTokenGenerator, *mocks.MockMailer) {
	mockRepo := mocks.NewMockUserRepository(ctrl)
	mockTokenService := mocks.NewMockTokenGenerator(ctrl)
	mockMailer := mocks.NewMockMailer(ctrl)
	verification := service.NewVerificationService(mockRepo, mockTokenService, mockMailer, cfg)
	s := service.NewUserService(mockRepo, mockTokenService, verification, mockMailer, cfg)

	return s, mockRepo, mockTokenService, mockMailer
}

func TestUserService_Register_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, mockTokenService, mockMailer := newUserService(ctrl, testConfig())

	input := dto.RegisterInput{
		Email:    "Test@Example.com",
		Password: "password123",
	}

	// Mock expectations: lookup is against the normalized email.
	mockRepo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(nil, nil)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, user *domain.User) error {
			assert.Equal(t, "test@example.com", user.Email)
			assert.NotEmpty(t, user.ID)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)))
			assert.False(t, user.EmailVerified)
			return nil
		})
	// Verification issuance side effect
	mockTokenService.EXPECT().NewOpaqueToken().Return("verification-token", nil)
	mockRepo.EXPECT().SetVerificationToken(gomock.Any(), gomock.Any(), "verification-token", gomock.Any()).Return(nil)
	mockMailer.EXPECT().SendVerificationEmail(gomock.Any(), "test@example.com", "verification-token").Return(nil)
	// Token pair
	mockTokenService.EXPECT().Generate(gomock.Any(), "test@example.com").Return("access-token", time.Now().Add(time.Hour), nil)
	mockTokenService.EXPECT().NewOpaqueToken().Return("refresh-token", nil)
	mockRepo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	mockTokenService.EXPECT().GetAccessTokenExpiry().Return(time.Hour)

	response, err := s.Register(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "test@example.com", response.User.Email)
	assert.Equal(t, "access-token", response.AccessToken)
	assert.Equal(t, "refresh-token", response.RefreshToken)
	assert.Equal(t, authconstant.DefaultTokenType, response.TokenType)
	assert.Equal(t, int(time.Hour.Seconds()), response.ExpiresIn)
}

func TestUserService_Register_EmailAlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	input := dto.RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	}

	existingUser := &domain.User{
		ID:    "existing-id",
		Email: input.Email,
	}

	mockRepo.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(existingUser, nil)

	response, err := s.Register(context.Background(), input)

	assert.Error(t, err)
	assert.Equal(t, autherror.ErrEmailAlreadyInUse, err)
	assert.Nil(t, response)
}

func TestUserService_Register_VerificationIssueFailureIsNonFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, mockTokenService, _ := newUserService(ctrl, testConfig())

	input := dto.RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	}

	mockRepo.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(nil, nil)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	mockTokenService.EXPECT().NewOpaqueToken().Return("", errors.New("entropy exhausted"))
	mockTokenService.EXPECT().Generate(gomock.Any(), input.Email).Return("access-token", time.Now().Add(time.Hour), nil)
	mockTokenService.EXPECT().NewOpaqueToken().Return("refresh-token", nil)
	mockRepo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	mockTokenService.EXPECT().GetAccessTokenExpiry().Return(time.Hour)

	response, err := s.Register(context.Background(), input)

	require.NoError(t, err)
	assert.NotNil(t, response)
}

func TestUserService_Login_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, mockTokenService, _ := newUserService(ctrl, testConfig())

	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	user := &domain.User{
		ID:                  "user-id",
		Email:               "test@example.com",
		PasswordHash:        string(hashedPassword),
		FailedLoginAttempts: 3,
	}

	input := dto.LoginInput{
		Email:    user.Email,
		Password: password,
	}

	mockRepo.EXPECT().GetByEmail(gomock.Any(), input.Email).Return(user, nil)
	mockRepo.EXPECT().ResetLockout(gomock.Any(), user.ID).Return(nil)
	mockTokenService.EXPECT().Generate(user.ID, user.Email).Return("access-token", time.Now().Add(time.Hour), nil)
	mockTokenService.EXPECT().NewOpaqueToken().Return("refresh-token", nil)
	mockRepo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rt *domain.RefreshToken) error {
			assert.Equal(t, user.ID, rt.UserID)
			assert.Equal(t, "refresh-token", rt.Token)
			assert.False(t, rt.Revoked)
			assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), rt.ExpiresAt, time.Minute)
			return nil
		})
	mockTokenService.EXPECT().GetAccessTokenExpiry().Return(time.Hour)

	response, err := s.Login(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "access-token", response.AccessToken)
	assert.Equal(t, "refresh-token", response.RefreshToken)
}

func TestUserService_Login_UnknownEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	// No increment, no lockout bookkeeping: an unidentified credential has
	// no side effects and gets the same generic error as a bad password.
	mockRepo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

	response, err := s.Login(context.Background(), dto.LoginInput{
		Email:    "ghost@example.com",
		Password: "whatever",
	})

	assert.Equal(t, autherror.ErrInvalidCredentials, err)
	assert.Nil(t, response)
}

func TestUserService_Login_WrongPasswordIncrementsCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	user := &domain.User{
		ID:           "user-id",
		Email:        "test@example.com",
		PasswordHash: string(hashedPassword),
	}

	mockRepo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	mockRepo.EXPECT().IncrementFailedAttempts(gomock.Any(), user.ID, 5, gomock.Any()).Return(1, nil, nil)

	response, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "wrong",
	})

	assert.Equal(t, autherror.ErrInvalidCredentials, err)
	assert.Nil(t, response)
}

func TestUserService_Login_FifthFailureLocksAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, mockMailer := newUserService(ctrl, testConfig())

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	user := &domain.User{
		ID:                  "user-id",
		Email:               "user@example.com",
		PasswordHash:        string(hashedPassword),
		FailedLoginAttempts: 4,
	}

	lockedUntil := time.Now().Add(15 * time.Minute)

	mockRepo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	mockRepo.EXPECT().IncrementFailedAttempts(gomock.Any(), user.ID, 5, gomock.Any()).
		Return(5, &lockedUntil, nil)
	mockMailer.EXPECT().SendLockoutNotice(gomock.Any(), user.Email, lockedUntil).Return(nil)

	response, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "wrong",
	})

	assert.Equal(t, autherror.ErrAccountLocked, err)
	assert.Nil(t, response)
}

func TestUserService_Login_LockedAccountShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	lockedUntil := time.Now().Add(10 * time.Minute)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	user := &domain.User{
		ID:                  "user-id",
		Email:               "user@example.com",
		PasswordHash:        string(hashedPassword),
		FailedLoginAttempts: 5,
		LockedUntil:         &lockedUntil,
	}

	// Only the lookup happens: no password comparison, no counter update,
	// even though the password below is correct.
	mockRepo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)

	response, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "correct",
	})

	assert.Equal(t, autherror.ErrAccountLocked, err)
	assert.Nil(t, response)
}

func TestUserService_Login_LapsedLockAllowsAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, mockTokenService, _ := newUserService(ctrl, testConfig())

	lockedUntil := time.Now().Add(-time.Minute)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	user := &domain.User{
		ID:                  "user-id",
		Email:               "user@example.com",
		PasswordHash:        string(hashedPassword),
		FailedLoginAttempts: 5,
		LockedUntil:         &lockedUntil,
	}

	mockRepo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
	mockRepo.EXPECT().ResetLockout(gomock.Any(), user.ID).Return(nil)
	mockTokenService.EXPECT().Generate(user.ID, user.Email).Return("access-token", time.Now().Add(time.Hour), nil)
	mockTokenService.EXPECT().NewOpaqueToken().Return("refresh-token", nil)
	mockRepo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	mockTokenService.EXPECT().GetAccessTokenExpiry().Return(time.Hour)

	response, err := s.Login(context.Background(), dto.LoginInput{
		Email:    user.Email,
		Password: "correct",
	})

	require.NoError(t, err)
	assert.NotNil(t, response)
}

func TestUserService_Refresh_Success_NoRotation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, mockTokenService, _ := newUserService(ctrl, testConfig())

	token := &domain.RefreshToken{
		ID:        "rt-id",
		UserID:    "user-id",
		Token:     "opaque-token",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	user := &domain.User{ID: "user-id", Email: "test@example.com"}

	// The stored token is read but never revoked or replaced.
	mockRepo.EXPECT().GetRefreshToken(gomock.Any(), "opaque-token").Return(token, nil)
	mockRepo.EXPECT().GetByID(gomock.Any(), "user-id").Return(user, nil)
	mockTokenService.EXPECT().Generate(user.ID, user.Email).Return("new-access-token", time.Now().Add(time.Hour), nil)
	mockTokenService.EXPECT().GetAccessTokenExpiry().Return(time.Hour)

	response, err := s.Refresh(context.Background(), dto.RefreshInput{RefreshToken: "opaque-token"})

	require.NoError(t, err)
	assert.Equal(t, "new-access-token", response.AccessToken)
	assert.Equal(t, authconstant.DefaultTokenType, response.TokenType)
}

func TestUserService_Refresh_Failures(t *testing.T) {
	tests := []struct {
		name        string
		token       *domain.RefreshToken
		expectedErr error
	}{
		{
			name:        "not found",
			token:       nil,
			expectedErr: autherror.ErrRefreshTokenNotFound,
		},
		{
			name: "revoked",
			token: &domain.RefreshToken{
				ID: "rt-id", UserID: "user-id", Revoked: true,
				ExpiresAt: time.Now().Add(time.Hour),
			},
			expectedErr: autherror.ErrRefreshTokenRevoked,
		},
		{
			name: "expired",
			token: &domain.RefreshToken{
				ID: "rt-id", UserID: "user-id",
				ExpiresAt: time.Now().Add(-time.Hour),
			},
			expectedErr: autherror.ErrRefreshTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			s, mockRepo, _, _ := newUserService(ctrl, testConfig())

			mockRepo.EXPECT().GetRefreshToken(gomock.Any(), "some-token").Return(tt.token, nil)

			response, err := s.Refresh(context.Background(), dto.RefreshInput{RefreshToken: "some-token"})

			assert.Equal(t, tt.expectedErr, err)
			assert.Nil(t, response)
		})
	}
}

func TestUserService_Logout_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	// Revoking twice is a no-op the second time, never an error.
	mockRepo.EXPECT().RevokeRefreshToken(gomock.Any(), "some-token").Return(nil).Times(2)

	assert.NoError(t, s.Logout(context.Background(), "some-token"))
	assert.NoError(t, s.Logout(context.Background(), "some-token"))
}

func TestUserService_LogoutAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	mockRepo.EXPECT().RevokeAllRefreshTokensByUserID(gomock.Any(), "user-id").Return(int64(3), nil)

	count, err := s.LogoutAll(context.Background(), "user-id")

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestUserService_AdminUnlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	lockedUntil := time.Now().Add(10 * time.Minute)
	user := &domain.User{ID: "user-id", LockedUntil: &lockedUntil, FailedLoginAttempts: 5}

	mockRepo.EXPECT().GetByID(gomock.Any(), "user-id").Return(user, nil)
	mockRepo.EXPECT().ResetLockout(gomock.Any(), "user-id").Return(nil)

	assert.NoError(t, s.AdminUnlock(context.Background(), "user-id"))
}

func TestUserService_AdminUnlock_UnknownUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s, mockRepo, _, _ := newUserService(ctrl, testConfig())

	mockRepo.EXPECT().GetByID(gomock.Any(), "missing-id").Return(nil, nil)

	assert.Equal(t, autherror.ErrUserNotFound, s.AdminUnlock(context.Background(), "missing-id"))
}

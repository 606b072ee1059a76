package handler

import (
	"errors"
	"log"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"github.com/maxjeffwell/microservices-platform/internal/auth/dto"
	"github.com/maxjeffwell/microservices-platform/internal/auth/service"
	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
	authconstant "github.com/maxjeffwell/microservices-platform/pkg/constant"
)

type AuthHandler struct {
	userService         *service.UserService
	resetService        *service.PasswordResetService
	verificationService *service.VerificationService
	tokenService        service.TokenGenerator
	adminAPIKey         string
}

func NewAuthHandler(userService *service.UserService, resetService *service.PasswordResetService,
	verificationService *service.VerificationService, tokenService service.TokenGenerator,
	adminAPIKey string) *AuthHandler {
	return &AuthHandler{
		userService:         userService,
		resetService:        resetService,
		verificationService: verificationService,
		tokenService:        tokenService,
		adminAPIKey:         adminAPIKey,
	}
}

// statusForError maps the domain error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; details never leave the process.
func statusForError(err error) int {
	switch {
	case errors.Is(err, autherror.ErrInvalidCredentials),
		errors.Is(err, autherror.ErrAccessTokenExpired),
		errors.Is(err, autherror.ErrAccessTokenInvalid),
		errors.Is(err, autherror.ErrRefreshTokenNotFound),
		errors.Is(err, autherror.ErrRefreshTokenRevoked),
		errors.Is(err, autherror.ErrRefreshTokenExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, autherror.ErrEmailAlreadyInUse):
		return fiber.StatusConflict
	case errors.Is(err, autherror.ErrAccountLocked):
		return fiber.StatusTooManyRequests
	case errors.Is(err, autherror.ErrResetTokenInvalid),
		errors.Is(err, autherror.ErrResetTokenUsed),
		errors.Is(err, autherror.ErrResetTokenExpired),
		errors.Is(err, autherror.ErrVerificationTokenInvalid),
		errors.Is(err, autherror.ErrVerificationTokenExpired),
		errors.Is(err, autherror.ErrEmailAlreadyVerified):
		return fiber.StatusBadRequest
	case errors.Is(err, autherror.ErrUserNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		sentry.CaptureException(err)
		log.Printf("error: %v", err)

		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if !strings.Contains(input.Email, "@") || len(input.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email must be valid and password at least 8 characters",
		})
	}

	response, err := h.userService.Register(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	response, err := h.userService.Login(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	response, err := h.userService.Refresh(c.Context(), input)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// Me returns the identity decoded from the presented access token.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims, ok := c.Locals(localClaimsKey).(*service.JWTCustomClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user_id": claims.UserID,
		"email":   claims.Email,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var input dto.LogoutInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.userService.Logout(c.Context(), input.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "signed out"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	claims, ok := c.Locals(localClaimsKey).(*service.JWTCustomClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	count, err := h.userService.LogoutAll(c.Context(), claims.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "signed out everywhere", "revoked": count})
}

// ForgotPassword always answers with the same generic ack. Internal failures
// are reported out-of-band; the response body never varies by outcome.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.resetService.Request(c.Context(), input.Email); err != nil {
		sentry.CaptureException(err)
		log.Printf("error: forgot-password request failed: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": authconstant.ForgotPasswordMessage})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if len(input.NewPassword) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "password must be at least 8 characters",
		})
	}

	if err := h.resetService.Consume(c.Context(), input.Token, input.NewPassword); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": authconstant.PasswordResetMessage})
}

func (h *AuthHandler) ValidateResetToken(c *fiber.Ctx) error {
	var input dto.ValidateResetTokenInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	status, err := h.resetService.Validate(c.Context(), input.Token)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var input dto.VerifyEmailInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	user, err := h.verificationService.Consume(c.Context(), input.Token)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "email verified",
		"email":   user.Email,
	})
}

// ResendVerification mirrors ForgotPassword: the generic ack never discloses
// whether the email exists or is already verified.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	var input dto.ResendVerificationInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.verificationService.Resend(c.Context(), input.Email); err != nil {
		sentry.CaptureException(err)
		log.Printf("error: resend verification failed: %v", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": authconstant.ResendVerificationMessage})
}

func (h *AuthHandler) AdminUnlock(c *fiber.Ctx) error {
	userID := c.Params("id")

	if err := h.userService.AdminUnlock(c.Context(), userID); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "account unlocked"})
}

func (h *AuthHandler) ForceLogout(c *fiber.Ctx) error {
	userID := c.Params("id")

	count, err := h.userService.LogoutAll(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "sessions revoked", "revoked": count})
}

package handler

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	v1 := app.Group("/api/v1")

	v1.Post("/register", h.Register)
	v1.Post("/login", h.Login)
	v1.Post("/refresh", h.Refresh)
	v1.Get("/me", h.RequireAuth, h.Me)
	v1.Delete("/session", h.Logout)
	v1.Delete("/sessions", h.RequireAuth, h.LogoutAll)

	v1.Post("/password/forgot", h.ForgotPassword)
	v1.Post("/password/reset", h.ResetPassword)
	v1.Post("/password/reset/validate", h.ValidateResetToken)

	v1.Post("/email/verify", h.VerifyEmail)
	v1.Post("/email/resend", h.ResendVerification)

	// Operational endpoints, gated by a static API key
	admin := v1.Group("/admin", h.RequireAdminKey)
	admin.Post("/user/:id/unlock", h.AdminUnlock)
	admin.Delete("/user/:id/sessions", h.ForceLogout)
}

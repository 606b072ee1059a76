package dto

type ForgotPasswordInput struct {
	Email string `json:"email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type ValidateResetTokenInput struct {
	Token string `json:"token"`
}

type ResetTokenStatus struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

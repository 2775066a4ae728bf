package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	auth *services.AuthService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(auth *services.AuthService) *PasswordResetHandler {
	return &PasswordResetHandler{auth: auth}
}

// ForgotPassword mails a reset code to an existing account.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "OTP sent to email"})
}

// VerifyForgotOTP exchanges a valid reset code for a short lived reset token.
func (h *PasswordResetHandler) VerifyForgotOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resetToken, err := h.auth.VerifyResetCode(c.UserContext(), req.Email, req.OTP)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "OTP verified",
		"resetToken": resetToken,
	})
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
	ResetToken  string `json:"resetToken" validate:"required"`
}

// ResetPassword sets a new password using a reset token.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.UserContext(), req.ResetToken, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "password reset successfully"})
}

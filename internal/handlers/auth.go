package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/services"
)

const refreshCookieName = "refreshToken"

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
	cfg  *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, cfg: cfg}
}

type registerRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Register creates an unverified account and mails the verification code.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.Register(c.UserContext(), req.FullName, req.Email, req.Password); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "OTP sent to email",
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendOTP issues a new registration code.
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req emailRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.ResendVerification(c.UserContext(), req.Email); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "OTP resent to email"})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// VerifyOTP activates an account with its registration code.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.auth.VerifyEmail(c.UserContext(), req.Email, req.OTP); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "account verified successfully"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates a verified account with its password.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tokens, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return h.respondWithTokens(c, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh issues a new access token from the refresh cookie or body.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookieName)
	if token == "" {
		var req refreshRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		token = req.RefreshToken
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "refresh token required")
	}

	accessToken, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "accessToken": accessToken})
}

// Logout drops the refresh cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(h.refreshCookie("", time.Unix(0, 0)))
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

type googleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// GoogleLogin signs in with a Google ID token.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tokens, err := h.auth.GoogleLogin(c.UserContext(), req.IDToken)
	if err != nil {
		return err
	}

	return h.respondWithTokens(c, tokens)
}

type facebookLoginRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// FacebookLogin signs in with a Facebook access token.
func (h *AuthHandler) FacebookLogin(c *fiber.Ctx) error {
	var req facebookLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	tokens, err := h.auth.FacebookLogin(c.UserContext(), req.AccessToken)
	if err != nil {
		return err
	}

	return h.respondWithTokens(c, tokens)
}

func (h *AuthHandler) respondWithTokens(c *fiber.Ctx, tokens *services.AuthTokens) error {
	c.Cookie(h.refreshCookie(tokens.RefreshToken, time.Now().Add(h.cfg.RefreshExpires)))

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tokens,
	})
}

func (h *AuthHandler) refreshCookie(value string, expires time.Time) *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if h.cfg.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = fiber.CookieSameSiteStrictMode
	}
	return cookie
}

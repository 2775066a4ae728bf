package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return validationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return validationError(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

// AuthService implements account registration, sign-in and password reset.
type AuthService struct {
	db       *gorm.DB
	cfg      *config.Config
	otp      *OTPService
	google   SocialVerifier
	facebook SocialVerifier
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. Either verifier may be nil, in
// which case that sign-in method rejects every token.
func NewAuthService(db *gorm.DB, cfg *config.Config, otp *OTPService, google, facebook SocialVerifier, log *zap.Logger) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		otp:      otp,
		google:   google,
		facebook: facebook,
		log:      log.Named("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AuthTokens is returned by every successful sign-in.
type AuthTokens struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// NormalizeEmail trims and lowercases an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findRole(tx *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	if err := tx.Where("name = ?", name).Take(&role).Error; err != nil {
		return nil, fmt.Errorf("load role %q: %w", name, err)
	}
	return &role, nil
}

func (s *AuthService) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Role").Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// Register creates an unverified account and sends the verification code.
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) error {
	email = NormalizeEmail(email)
	if err := checkPassword(password); err != nil {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		role, err := findRole(tx, models.RoleUser)
		if err != nil {
			return err
		}

		return tx.Create(&models.User{
			FullName:     strings.TrimSpace(fullName),
			Email:        email,
			PasswordHash: &hash,
			RoleID:       role.ID,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("register: %w", err)
	}

	s.log.Info("user registered", zap.String("email", email))
	return s.otp.Request(ctx, email, models.OTPPurposeRegister)
}

// ResendVerification issues a new registration code for an unverified account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.findUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	return s.otp.Request(ctx, user.Email, models.OTPPurposeRegister)
}

// VerifyEmail consumes a registration code and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	_, err := s.otp.Verify(ctx, NormalizeEmail(email), models.OTPPurposeRegister, strings.TrimSpace(code))
	return err
}

// Login checks a password sign-in. Unverified accounts are refused before
// the password is compared.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthTokens, error) {
	user, err := s.findUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &now

	return s.issueTokens(user)
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := utils.ParseClaims(s.cfg.JWTRefreshSecret, refreshToken, utils.TokenPurposeRefresh)
	if err != nil {
		return "", ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", ErrInvalidToken
	}

	var user models.User
	err = s.db.WithContext(ctx).Preload("Role").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}

	return utils.GenerateAccessToken(s.cfg.JWTSecret, user.ID, user.Email, user.RoleName(), s.cfg.TokenExpires)
}

// GoogleLogin signs in with a Google ID token.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthTokens, error) {
	return s.socialLogin(ctx, s.google, "google_id", idToken)
}

// FacebookLogin signs in with a Facebook user access token.
func (s *AuthService) FacebookLogin(ctx context.Context, accessToken string) (*AuthTokens, error) {
	return s.socialLogin(ctx, s.facebook, "facebook_id", accessToken)
}

// socialLogin finds the account by provider ID, then by email, and creates
// a verified password-less account when neither matches. A matched account
// gets the provider ID linked.
func (s *AuthService) socialLogin(ctx context.Context, verifier SocialVerifier, idColumn, token string) (*AuthTokens, error) {
	if verifier == nil {
		return nil, ErrInvalidToken
	}

	profile, err := verifier.Verify(ctx, token)
	if err != nil {
		s.log.Info("social token rejected", zap.String("provider", idColumn), zap.Error(err))
		return nil, ErrInvalidToken
	}
	if profile.ID == "" {
		return nil, ErrInvalidToken
	}

	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, validationError("provider account has no email address")
	}

	now := s.now()
	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Role").Where(idColumn+" = ?", profile.ID).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Preload("Role").Where("email = ?", email).Take(&user).Error
		}

		switch {
		case err == nil:
			updates := map[string]interface{}{
				idColumn:        profile.ID,
				"is_verified":   true,
				"last_login_at": now,
			}
			if user.AvatarURL == "" && profile.AvatarURL != "" {
				updates["avatar_url"] = profile.AvatarURL
			}
			return tx.Model(&user).Updates(updates).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		role, err := findRole(tx, models.RoleUser)
		if err != nil {
			return err
		}

		providerID := profile.ID
		user = models.User{
			FullName:    profile.Name,
			Email:       email,
			AvatarURL:   profile.AvatarURL,
			IsVerified:  true,
			RoleID:      role.ID,
			Role:        role,
			LastLoginAt: &now,
		}
		if idColumn == "google_id" {
			user.GoogleID = &providerID
		} else {
			user.FacebookID = &providerID
		}
		return tx.Omit("Role").Create(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("social login: %w", err)
	}

	return s.issueTokens(&user)
}

func (s *AuthService) issueTokens(user *models.User) (*AuthTokens, error) {
	access, err := utils.GenerateAccessToken(s.cfg.JWTSecret, user.ID, user.Email, user.RoleName(), s.cfg.TokenExpires)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := utils.GenerateRefreshToken(s.cfg.JWTRefreshSecret, user.ID, s.cfg.RefreshExpires)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &AuthTokens{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// ForgotPassword sends a password reset code to an existing account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	return s.otp.Request(ctx, user.Email, models.OTPPurposeResetPassword)
}

// VerifyResetCode consumes a reset code and returns the reset token.
func (s *AuthService) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	return s.otp.Verify(ctx, NormalizeEmail(email), models.OTPPurposeResetPassword, strings.TrimSpace(code))
}

// ResetPassword stores a new password for the account named in resetToken.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	claims, err := utils.ParseClaims(s.cfg.JWTSecret, resetToken, utils.TokenPurposeResetPassword)
	if err != nil || claims.Email == "" {
		return ErrInvalidToken
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", claims.Email).
		Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("reset password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.log.Info("password reset", zap.String("email", claims.Email))
	return nil
}

// Profile loads the signed-in user's account.
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Role").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the editable profile fields that are non-nil.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, avatarURL *string) (*models.User, error) {
	updates := map[string]interface{}{}
	if fullName != nil {
		updates["full_name"] = strings.TrimSpace(*fullName)
	}
	if avatarURL != nil {
		updates["avatar_url"] = *avatarURL
	}
	if len(updates) == 0 {
		return nil, validationError("no fields to update")
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("update profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return s.Profile(ctx, userID)
}

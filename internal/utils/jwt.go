package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. A token is only accepted where its purpose matches.
const (
	TokenPurposeAccess        = "access"
	TokenPurposeRefresh       = "refresh"
	TokenPurposeResetPassword = "reset_password"
)

var ErrTokenPurpose = errors.New("token purpose mismatch")

// Claims is the payload carried by every token the service issues.
type Claims struct {
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// GenerateToken signs claims with HS256 and the given lifetime.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(secret))
}

// GenerateAccessToken creates the bearer token used on protected routes.
func GenerateAccessToken(secret string, userID uuid.UUID, email, role string, ttl time.Duration) (string, error) {
	return GenerateToken(secret, Claims{
		UserID:  userID.String(),
		Email:   email,
		Role:    role,
		Purpose: TokenPurposeAccess,
	}, ttl)
}

// GenerateRefreshToken creates the long lived token exchanged for access tokens.
func GenerateRefreshToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	return GenerateToken(secret, Claims{
		UserID:  userID.String(),
		Purpose: TokenPurposeRefresh,
	}, ttl)
}

// GenerateResetToken creates the short lived credential that authorizes a
// password change for email after its reset code was verified.
func GenerateResetToken(secret, email string, ttl time.Duration) (string, error) {
	return GenerateToken(secret, Claims{
		Email:   email,
		Purpose: TokenPurposeResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: email,
		},
	}, ttl)
}

// ParseClaims validates the token signature, expiry and purpose.
func ParseClaims(secret, tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	if claims.Purpose != purpose {
		return nil, ErrTokenPurpose
	}

	return claims, nil
}

package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound         = errors.New("not found")
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrAddressNotFound  = fmt.Errorf("address %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrOTPNotFound      = fmt.Errorf("otp %w", ErrNotFound)

	ErrConflict        = errors.New("conflict")
	ErrEmailTaken      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrAlreadyVerified = fmt.Errorf("account already verified: %w", ErrConflict)
	ErrInvalidStatus   = fmt.Errorf("status transition not allowed: %w", ErrConflict)

	ErrEmptyCart = errors.New("cart is empty")

	ErrOTPExpired     = errors.New("otp expired")
	ErrOTPInvalid     = errors.New("invalid otp")
	ErrOTPBlocked     = errors.New("too many attempts, try again later")
	ErrOTPRateLimited = errors.New("too many requests, try again later")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrTransactionFailed = errors.New("transaction failed")
)

// TooSoonError is returned when a code is requested inside the cooldown window.
type TooSoonError struct {
	SecondsLeft int
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.SecondsLeft)
}

// validationError wraps ErrValidation with a client facing reason.
func validationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

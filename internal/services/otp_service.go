package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const mailTimeout = 15 * time.Second

// OTPService issues and checks one-time codes. All state lives in the
// otps table so several API instances can share it.
type OTPService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer Mailer
	log    *zap.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService constructs an OTPService.
func NewOTPService(db *gorm.DB, cfg *config.Config, mailer Mailer, log *zap.Logger) *OTPService {
	return &OTPService{
		db:       db,
		cfg:      cfg,
		mailer:   mailer,
		log:      log.Named("otp"),
		now:      func() time.Time { return time.Now().UTC() },
		generate: utils.GenerateOTPCode,
	}
}

// Request issues a fresh code for (identity, purpose) and mails it.
//
// A blocked record yields ErrOTPRateLimited and a record inside the resend
// cooldown yields *TooSoonError; neither touches the stored code. Once the
// resend allowance is used up the record is blocked instead of reissued.
// Mail delivery failures are logged only, the caller can request again.
func (s *OTPService) Request(ctx context.Context, identity string, purpose models.OTPPurpose) error {
	if !purpose.Valid() {
		return validationError("unknown otp purpose")
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	now := s.now()
	policy := s.cfg.OTP

	// outcome carries rejections whose side effects must still commit.
	var outcome error
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OTP
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("identity = ? AND purpose = ?", identity, purpose).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if rejection := s.requestRejection(&existing, now); rejection != nil {
				outcome = rejection
				return nil
			}
			if existing.ResendCount >= policy.MaxResends {
				outcome = ErrOTPRateLimited
				return tx.Model(&existing).Updates(map[string]interface{}{
					"block_until":  now.Add(policy.ResendBlock),
					"resend_count": 0,
				}).Error
			}
		}

		record := models.OTP{
			Identity:    identity,
			Purpose:     purpose,
			Code:        code,
			ExpiresAt:   now.Add(policy.CodeTTL),
			ResendCount: 1,
			LastSentAt:  now,
		}

		// The WHERE re-checks cooldown and block inside the upsert itself so
		// two concurrent requests cannot both overwrite the code.
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity"}, {Name: "purpose"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"code":         code,
				"expires_at":   record.ExpiresAt,
				"attempts":     0,
				"resend_count": gorm.Expr("otps.resend_count + 1"),
				"last_sent_at": now,
				"block_until":  nil,
				"updated_at":   now,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{
					SQL:  "otps.last_sent_at <= ? AND (otps.block_until IS NULL OR otps.block_until <= ?)",
					Vars: []interface{}{now.Add(-policy.Cooldown), now},
				},
			}},
		}).Create(&record)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			var current models.OTP
			if err := tx.Where("identity = ? AND purpose = ?", identity, purpose).Take(&current).Error; err != nil {
				return err
			}
			outcome = s.requestRejection(&current, now)
			if outcome == nil {
				outcome = ErrOTPRateLimited
			}
		}
		return nil
	})
	if err != nil {
		utils.OTPRequestsTotal.WithLabelValues(string(purpose), "error").Inc()
		return fmt.Errorf("request otp: %w", err)
	}
	if outcome != nil {
		utils.OTPRequestsTotal.WithLabelValues(string(purpose), outcomeLabel(outcome)).Inc()
		return outcome
	}

	utils.OTPRequestsTotal.WithLabelValues(string(purpose), "issued").Inc()
	s.deliver(ctx, identity, purpose, code)
	return nil
}

func (s *OTPService) requestRejection(record *models.OTP, now time.Time) error {
	if record.BlockedAt(now) {
		return ErrOTPRateLimited
	}
	if wait := record.LastSentAt.Add(s.cfg.OTP.Cooldown).Sub(now); wait > 0 {
		return &TooSoonError{SecondsLeft: int(math.Ceil(wait.Seconds()))}
	}
	return nil
}

func (s *OTPService) deliver(ctx context.Context, identity string, purpose models.OTPPurpose, code string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()

	subject, body := otpMessage(purpose, code, int(s.cfg.OTP.CodeTTL/time.Minute))
	if err := s.mailer.Send(ctx, identity, subject, body); err != nil {
		s.log.Warn("otp delivery failed",
			zap.String("identity", identity),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
}

// Verify checks code against the live record for (identity, purpose).
//
// Checks run in order: missing record, active block, expiry, mismatch.
// A mismatch counts an attempt and the attempt that reaches the limit
// blocks the record. A match consumes the record; for registration the
// user is marked verified in the same transaction, for password reset a
// short lived reset token is returned.
func (s *OTPService) Verify(ctx context.Context, identity string, purpose models.OTPPurpose, code string) (string, error) {
	if !purpose.Valid() {
		return "", validationError("unknown otp purpose")
	}

	now := s.now()
	policy := s.cfg.OTP

	var outcome error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.OTP
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("identity = ? AND purpose = ?", identity, purpose).
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			outcome = ErrOTPNotFound
			return nil
		}
		if err != nil {
			return err
		}

		if record.BlockedAt(now) {
			outcome = ErrOTPBlocked
			return nil
		}

		if record.ExpiredAt(now) {
			outcome = ErrOTPExpired
			return nil
		}

		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
			attempts := record.Attempts + 1
			updates := map[string]interface{}{"attempts": attempts}
			outcome = ErrOTPInvalid
			if attempts >= policy.MaxAttempts {
				updates["block_until"] = now.Add(policy.BlockDuration)
				outcome = ErrOTPBlocked
			}
			return tx.Model(&record).Updates(updates).Error
		}

		if err := tx.Delete(&record).Error; err != nil {
			return err
		}

		if purpose == models.OTPPurposeRegister {
			result := tx.Model(&models.User{}).Where("email = ?", identity).Update("is_verified", true)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrUserNotFound
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			utils.OTPVerificationsTotal.WithLabelValues(string(purpose), "not_found").Inc()
			return "", err
		}
		utils.OTPVerificationsTotal.WithLabelValues(string(purpose), "error").Inc()
		return "", fmt.Errorf("verify otp: %w", err)
	}
	if outcome != nil {
		utils.OTPVerificationsTotal.WithLabelValues(string(purpose), outcomeLabel(outcome)).Inc()
		return "", outcome
	}

	utils.OTPVerificationsTotal.WithLabelValues(string(purpose), "verified").Inc()

	if purpose != models.OTPPurposeResetPassword {
		return "", nil
	}

	token, err := utils.GenerateResetToken(s.cfg.JWTSecret, identity, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	return token, nil
}

func outcomeLabel(err error) string {
	var tooSoon *TooSoonError
	switch {
	case errors.As(err, &tooSoon):
		return "too_soon"
	case errors.Is(err, ErrOTPRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrOTPBlocked):
		return "blocked"
	case errors.Is(err, ErrOTPExpired):
		return "expired"
	case errors.Is(err, ErrOTPInvalid):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

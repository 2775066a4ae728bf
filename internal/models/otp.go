package models

import "time"

// OTPPurpose discriminates the flows sharing the otps table.
type OTPPurpose string

const (
	OTPPurposeRegister      OTPPurpose = "register"
	OTPPurposeResetPassword OTPPurpose = "reset_password"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeRegister || p == OTPPurposeResetPassword
}

// OTP is the single live one-time code for an (identity, purpose) pair.
// Rows are updated in place on resend and removed on successful verification.
type OTP struct {
	BaseModel
	Identity    string     `gorm:"size:255;not null;uniqueIndex:idx_otps_identity_purpose" json:"identity"`
	Purpose     OTPPurpose `gorm:"size:32;not null;uniqueIndex:idx_otps_identity_purpose" json:"purpose"`
	Code        string     `gorm:"size:6;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	Attempts    int        `gorm:"not null" json:"attempts"`
	ResendCount int        `gorm:"not null" json:"resend_count"`
	BlockUntil  *time.Time `json:"block_until"`
	LastSentAt  time.Time  `gorm:"not null" json:"last_sent_at"`
}

// TableName pins the table name used by the raw upsert conditions.
func (OTP) TableName() string {
	return "otps"
}

// BlockedAt reports whether the record is inside a block window at t.
func (o *OTP) BlockedAt(t time.Time) bool {
	return o.BlockUntil != nil && o.BlockUntil.After(t)
}

// ExpiredAt reports whether the code is no longer valid at t.
func (o *OTP) ExpiredAt(t time.Time) bool {
	return !o.ExpiresAt.After(t)
}

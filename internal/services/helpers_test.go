package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var codePattern = regexp.MustCompile(`<b>(\d{6})</b>`)

// lastCode extracts the code from the most recent message.
func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	match := codePattern.FindStringSubmatch(m.sent[len(m.sent)-1].Body)
	require.Len(t, match, 2, "no code in mail body")
	return match[1]
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, string, string, string) error {
	return errors.New("smtp: connection refused")
}

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		TokenExpires:     time.Hour,
		RefreshExpires:   24 * time.Hour,
		ResetTokenTTL:    10 * time.Minute,
		OTP: config.OTPConfig{
			CodeTTL:       10 * time.Minute,
			Cooldown:      60 * time.Second,
			MaxAttempts:   5,
			BlockDuration: 10 * time.Minute,
			MaxResends:    5,
			ResendBlock:   15 * time.Minute,
		},
	}
}

func newTestOTPService(t *testing.T, mailer Mailer) (*OTPService, *gorm.DB, *testClock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := newTestClock()
	svc := NewOTPService(db, testConfig(), mailer, zap.NewNop())
	svc.now = clock.Now
	return svc, db, clock
}

// wrongCode returns a 6-digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func loadOTP(t *testing.T, db *gorm.DB, identity string, purpose models.OTPPurpose) models.OTP {
	t.Helper()
	var record models.OTP
	require.NoError(t, db.Where("identity = ? AND purpose = ?", identity, purpose).Take(&record).Error)
	return record
}

func seedUser(t *testing.T, db *gorm.DB, email string, verified bool) models.User {
	t.Helper()
	var role models.Role
	require.NoError(t, db.Where("name = ?", models.RoleUser).Take(&role).Error)

	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)

	user := models.User{
		FullName:     "Test User",
		Email:        email,
		PasswordHash: &hash,
		IsVerified:   verified,
		RoleID:       role.ID,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, active bool) models.Product {
	t.Helper()
	product := models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "general",
		IsActive: active,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedAddress(t *testing.T, db *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()
	address := models.Address{
		UserID:   userID,
		FullName: "Test User",
		Phone:    "+15550100",
		City:     "Springfield",
		Street:   "742 Evergreen Terrace",
	}
	require.NoError(t, db.Create(&address).Error)
	return address
}

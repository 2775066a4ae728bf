package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database/dbtest"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
)

type inbox struct {
	mu     sync.Mutex
	bodies []string
}

func (m *inbox) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *inbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bodies)
}

var codePattern = regexp.MustCompile(`<b>(\d{6})</b>`)

func (m *inbox) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies)
	match := codePattern.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.Len(t, match, 2)
	return match[1]
}

type testServer struct {
	app  *fiber.App
	db   *gorm.DB
	mail *inbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.Open(t)
	mail := &inbox{}
	cfg := &config.Config{
		Environment:      "test",
		JWTSecret:        "routes-access-secret",
		JWTRefreshSecret: "routes-refresh-secret",
		TokenExpires:     time.Hour,
		RefreshExpires:   24 * time.Hour,
		ResetTokenTTL:    10 * time.Minute,
		OTP: config.OTPConfig{
			CodeTTL:       10 * time.Minute,
			Cooldown:      time.Minute,
			MaxAttempts:   5,
			BlockDuration: 10 * time.Minute,
			MaxResends:    5,
			ResendBlock:   15 * time.Minute,
		},
	}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	Register(app, Dependencies{DB: db, Config: cfg, Logger: zap.NewNop(), Mailer: mail})
	return &testServer{app: app, db: db, mail: mail}
}

type envelope struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message"`
	Data       json.RawMessage        `json:"data"`
	Pagination map[string]interface{} `json:"pagination"`
}

func (s *testServer) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst), string(raw))
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, env := s.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, env.Message)

	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decode(t, env.Data, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, env := s.call(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/cart", "/api/orders", "/api/profile", "/api/admin/stats"} {
		status, env := s.call(t, "GET", path, "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
		assert.False(t, env.Success)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	status, env := s.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Alice",
		"email":     "not-an-email",
		"password":  "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, env.Message, "email")

	// Passes the rune count check but exceeds the bcrypt byte limit.
	status, _ = s.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Alice",
		"email":     "alice@example.com",
		"password":  strings.Repeat("é", 40),
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 0, s.mail.count())
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	const email = "shopper@example.com"

	status, env := s.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Shopper",
		"email":     email,
		"password":  "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)

	status, env = s.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": email, "password": "correct-horse"})
	require.Equal(t, fiber.StatusForbidden, status)

	status, env = s.call(t, "POST", "/api/auth/verify-otp", "", fiber.Map{"email": email, "otp": s.mail.lastCode(t)})
	require.Equal(t, fiber.StatusOK, status, env.Message)

	// Promote to admin and sign in again so the token carries the role.
	var admin models.Role
	require.NoError(t, s.db.Where("name = ?", models.RoleAdmin).Take(&admin).Error)
	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", email).Update("role_id", admin.ID).Error)
	token := s.login(t, email, "correct-horse")

	status, env = s.call(t, "POST", "/api/products", token, fiber.Map{
		"name":     "Rose Oud",
		"price":    "10.00",
		"category": "perfume",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	var product models.Product
	decode(t, env.Data, &product)

	status, env = s.call(t, "POST", "/api/cart/items", token, fiber.Map{"product_id": product.ID, "qty": 2})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	var cart struct {
		Items []struct {
			Qty int `json:"qty"`
		} `json:"items"`
		Total decimal.Decimal `json:"total"`
	}
	decode(t, env.Data, &cart)
	require.Len(t, cart.Items, 1)
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(20)), cart.Total.String())

	status, env = s.call(t, "POST", "/api/addresses", token, fiber.Map{
		"full_name":  "Shopper",
		"phone":      "+15550100",
		"city":       "Springfield",
		"street":     "742 Evergreen Terrace",
		"is_default": true,
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	var address models.Address
	decode(t, env.Data, &address)

	status, env = s.call(t, "POST", "/api/orders", token, fiber.Map{"address_id": address.ID})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	var placed struct {
		OrderID string          `json:"order_id"`
		Total   decimal.Decimal `json:"total"`
	}
	decode(t, env.Data, &placed)
	assert.True(t, placed.Total.Equal(decimal.NewFromInt(20)))

	status, env = s.call(t, "POST", "/api/orders", token, fiber.Map{"address_id": address.ID})
	assert.Equal(t, fiber.StatusBadRequest, status, "cart was emptied")

	status, env = s.call(t, "GET", "/api/orders", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, env.Pagination["total_items"])

	status, env = s.call(t, "GET", "/api/orders/"+placed.OrderID, token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var order models.Order
	decode(t, env.Data, &order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Qty)

	status, env = s.call(t, "PATCH", "/api/admin/orders/"+placed.OrderID+"/status", token, fiber.Map{"status": "delivered"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, env = s.call(t, "PATCH", "/api/admin/orders/"+placed.OrderID+"/status", token, fiber.Map{"status": "confirmed"})
	require.Equal(t, fiber.StatusOK, status, env.Message)
	decode(t, env.Data, &order)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	status, env = s.call(t, "GET", "/api/cart", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	decode(t, env.Data, &cart)
	assert.Empty(t, cart.Items)

	status, env = s.call(t, "DELETE", "/api/addresses/"+address.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusConflict, status, "address used by an order")
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	s := newTestServer(t)
	const email = "customer@example.com"

	status, _ := s.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Customer",
		"email":     email,
		"password":  "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = s.call(t, "POST", "/api/auth/verify-otp", "", fiber.Map{"email": email, "otp": s.mail.lastCode(t)})
	require.Equal(t, fiber.StatusOK, status)
	token := s.login(t, email, "correct-horse")

	status, _ = s.call(t, "GET", "/api/admin/stats", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.call(t, "POST", "/api/products", token, fiber.Map{"name": "x", "price": "1"})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func (s *testServer) verifiedUser(t *testing.T, email string) {
	t.Helper()
	status, env := s.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Member",
		"email":     email,
		"password":  "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	status, env = s.call(t, "POST", "/api/auth/verify-otp", "", fiber.Map{"email": email, "otp": s.mail.lastCode(t)})
	require.Equal(t, fiber.StatusOK, status, env.Message)
}

func TestPasswordResetRoutes(t *testing.T) {
	s := newTestServer(t)
	const email = "forgetful@example.com"
	s.verifiedUser(t, email)

	status, env := s.call(t, "POST", "/api/auth/forgot-password", "", fiber.Map{"email": email})
	require.Equal(t, fiber.StatusOK, status, env.Message)

	req := httptest.NewRequest("POST", "/api/auth/verify-forgot-otp",
		bytes.NewReader([]byte(`{"email":"`+email+`","otp":"`+s.mail.lastCode(t)+`"}`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var verified struct {
		ResetToken string `json:"resetToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verified))
	require.NotEmpty(t, verified.ResetToken)

	status, _ = s.call(t, "POST", "/api/auth/reset-password", "", fiber.Map{
		"newPassword": strings.Repeat("a", 80),
		"resetToken":  verified.ResetToken,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = s.call(t, "POST", "/api/auth/reset-password", "", fiber.Map{
		"newPassword": "battery-staple",
		"resetToken":  verified.ResetToken,
	})
	require.Equal(t, fiber.StatusOK, status, env.Message)

	s.login(t, email, "battery-staple")

	status, _ = s.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": email, "password": "correct-horse"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestFavouriteRoutes(t *testing.T) {
	s := newTestServer(t)
	const email = "fan@example.com"
	s.verifiedUser(t, email)
	token := s.login(t, email, "correct-horse")

	product := models.Product{Name: "Amber", Price: decimal.RequireFromString("5.50"), IsActive: true}
	require.NoError(t, s.db.Create(&product).Error)

	for i := 0; i < 2; i++ {
		status, env := s.call(t, "POST", "/api/favourites", token, fiber.Map{"product_id": product.ID})
		require.Equal(t, fiber.StatusCreated, status, env.Message)
	}

	status, env := s.call(t, "GET", "/api/favourites", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var favourites []models.Favourite
	decode(t, env.Data, &favourites)
	require.Len(t, favourites, 1)
	assert.Equal(t, product.ID, favourites[0].ProductID)

	status, _ = s.call(t, "DELETE", "/api/favourites/"+product.ID.String(), token, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, env = s.call(t, "GET", "/api/favourites", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	decode(t, env.Data, &favourites)
	assert.Empty(t, favourites)
}

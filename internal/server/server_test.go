package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lupora-api/internal/apperr"
	"lupora-api/internal/auth"
	"lupora-api/internal/client"
	"lupora-api/internal/config"
	"lupora-api/internal/notify"
	"lupora-api/internal/repository"
	"lupora-api/internal/service"
	"lupora-api/internal/testutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "rzp_test_secret"
	testWebhookSecret = "whsec_test"

	shippingJSON = `{"fullName":"Asha Rao","phone":"9876543210","address":"12 MG Road","city":"Bengaluru","state":"Karnataka","pincode":"560001"}`
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.OrderPlaced) {}

type testServer struct {
	*Server
	db    *gorm.DB
	clock *fakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: config.Environment{Name: "test"},
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit: config.RateLimit{
			AuthMax:    15,
			AuthWindow: 15 * time.Minute,
			APIMax:     100,
			APIWindow:  time.Minute,
		},
		Catalog: config.Catalog{CacheTTL: 5 * time.Minute},
		Razorpay: config.Razorpay{
			BaseApiURL:    "http://127.0.0.1:0",
			KeySecret:     testKeySecret,
			WebhookSecret: testWebhookSecret,
			Currency:      "INR",
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	log := zap.NewNop()

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	tokens := auth.NewTokenManager("server-test-secret", 7*24*time.Hour)
	health := client.NewHealthCheck(db)
	locks := service.NewUserLocks()

	srv := NewServer(Deps{
		Config: cfg,
		Log:    log,
		Tokens: tokens,
		Health: health,

		UserService:    service.NewUserService(userRepo, tokens, bcrypt.MinCost, log),
		CatalogService: service.NewCatalogService(productRepo, mediaRepo, health, cfg.Catalog.CacheTTL, time.Now, log),
		CartService:    service.NewCartService(db, cartRepo, productRepo, locks),
		OrderService: service.NewOrderService(service.OrderServiceDeps{
			DB:              db,
			OrderRepo:       orderRepo,
			CartRepo:        cartRepo,
			ProductRepo:     productRepo,
			UserRepo:        userRepo,
			IdempotencyRepo: idempotencyRepo,
			Publisher:       nopPublisher{},
			Locks:           locks,
			IdempotencyTTL:  24 * time.Hour,
			Now:             time.Now,
		}, log),
		PaymentService: service.NewPaymentService(
			client.NewRazorpayClient(&cfg.Razorpay),
			cfg.Razorpay,
			orderRepo,
			webhookEventRepo,
			log,
		),
		ReviewService: service.NewReviewService(reviewRepo, productRepo, userRepo),

		Now: clock.Now,
	})

	return &testServer{Server: srv, db: db, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()

	body := `{"name":"` + name + `","email":"` + email + `","password":"secret123"}`
	rec := s.do(t, http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	return body.Message
}

func TestBannerAndHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lupora Server is Running...", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"connected"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", message(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(t, http.MethodOptions, "/api/products", "", "",
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	product := testutil.CreateProduct(t, s.db, "Flora Divina", 4500)

	rec := s.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	var products []map[string]interface{}
	decode(t, rec, &products)
	require.Len(t, products, 1)
	assert.Equal(t, product.ID, products[0]["_id"])

	rec = s.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = s.do(t, http.MethodGet, "/api/products/"+product.ID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid product ID", message(t, rec))

	rec = s.do(t, http.MethodGet, "/api/products/0b9f7f0e-4c1a-4a5e-9d55-2f4f0f1b6c3d", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/media", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var media []map[string]interface{}
	decode(t, rec, &media)
	assert.Empty(t, media)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantMsg: "Access denied. No token provided."},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantMsg: "Access denied. No token provided."},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusForbidden, wantMsg: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			rec := s.do(t, http.MethodGet, "/api/cart", "", "", headers...)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, message(t, rec))
		})
	}
}

func TestAccountEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := s.register(t, "Asha Rao", "asha@example.com")

	rec := s.do(t, http.MethodPost, "/api/auth/register",
		`{"name":"Asha Again","email":"ASHA@example.com","password":"secret123"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", `{"email":"asha@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", message(t, rec))

	rec = s.do(t, http.MethodPost, "/api/auth/login", `{"email":"asha@example.com","password":"secret123"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPut, "/api/auth/profile", `{"name":"Asha R"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		Token string `json:"token"`
		User  struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	decode(t, rec, &profile)
	assert.Equal(t, "Asha R", profile.User.Name)
	assert.NotEmpty(t, profile.Token)

	rec = s.do(t, http.MethodPut, "/api/auth/change-password",
		`{"currentPassword":"nope-nope","newPassword":"another123"}`, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/auth/change-password",
		`{"currentPassword":"secret123","newPassword":"another123"}`, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/register", `{"name":"x"`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t, testConfig())
	product := testutil.CreateProduct(t, s.db, "Flora Divina", 4500)
	token := s.register(t, "Asha Rao", "asha@example.com")

	rec := s.do(t, http.MethodPost, "/api/cart/add", `{"productId":"`+product.ID+`","quantity":2}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cart struct {
		Message    string  `json:"message"`
		TotalItems int     `json:"totalItems"`
		TotalPrice float64 `json:"totalPrice"`
	}
	decode(t, rec, &cart)
	assert.Equal(t, "Item added to cart", cart.Message)
	assert.Equal(t, 2, cart.TotalItems)
	assert.Equal(t, 9000.0, cart.TotalPrice)

	orderBody := `{"shippingAddress":` + shippingJSON + `,"paymentMethod":"cod"}`
	rec = s.do(t, http.MethodPost, "/api/orders", orderBody, token, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var placed struct {
		Message string `json:"message"`
		OrderID string `json:"orderId"`
		Order   struct {
			TotalAmount   float64 `json:"totalAmount"`
			PaymentStatus string  `json:"paymentStatus"`
		} `json:"order"`
	}
	decode(t, rec, &placed)
	assert.Equal(t, "Order placed successfully", placed.Message)
	assert.Equal(t, 9000.0, placed.Order.TotalAmount)
	assert.Equal(t, "pending", placed.Order.PaymentStatus)

	// retry with the same key replays the order
	rec = s.do(t, http.MethodPost, "/api/orders", orderBody, token, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replay struct {
		OrderID string `json:"orderId"`
	}
	decode(t, rec, &replay)
	assert.Equal(t, placed.OrderID, replay.OrderID)

	rec = s.do(t, http.MethodGet, "/api/cart", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"totalItems":0,"totalPrice":0}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/orders", orderBody, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cart is empty", message(t, rec))

	rec = s.do(t, http.MethodGet, "/api/orders", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []map[string]interface{}
	decode(t, rec, &orders)
	assert.Len(t, orders, 1)

	rec = s.do(t, http.MethodGet, "/api/orders/"+placed.OrderID, "", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := s.register(t, "Ravi Kumar", "ravi@example.com")
	rec = s.do(t, http.MethodGet, "/api/orders/"+placed.OrderID, "", other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", message(t, rec))
}

func TestCartMutations(t *testing.T) {
	s := newTestServer(t, testConfig())
	product := testutil.CreateProduct(t, s.db, "Oud Mystique", 6800)
	token := s.register(t, "Asha Rao", "asha@example.com")

	rec := s.do(t, http.MethodPut, "/api/cart/update", `{"productId":"`+product.ID+`","quantity":1}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cart not found", message(t, rec))

	rec = s.do(t, http.MethodPost, "/api/cart/add", `{"productId":"`+product.ID+`","quantity":0}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add", `{"productId":"`+product.ID+`","quantity":1}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/cart/update", `{"productId":"`+product.ID+`","quantity":3}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalItems":3`)

	rec = s.do(t, http.MethodDelete, "/api/cart/remove/"+product.ID, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalItems":0`)

	rec = s.do(t, http.MethodDelete, "/api/cart/clear", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/cart/clear", "", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReviewEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	product := testutil.CreateProduct(t, s.db, "Velvet Rose", 4800)
	token := s.register(t, "Asha Rao", "asha@example.com")

	path := "/api/products/" + product.ID + "/reviews"

	rec := s.do(t, http.MethodPost, path, `{"rating":5,"comment":"Lovely"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, path, `{"rating":5,"comment":"Lovely"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, path, `{"rating":4,"comment":"Still lovely"}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews []map[string]interface{}
	decode(t, rec, &reviews)
	assert.Len(t, reviews, 1)
}

func TestPaymentEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())
	token := s.register(t, "Asha Rao", "asha@example.com")

	t.Run("create order without gateway keys", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/payment/create-order", `{"amount":4500}`, token)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "Payment gateway not configured", message(t, rec))
	})

	t.Run("verify mismatch", func(t *testing.T) {
		body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"deadbeef"}`
		rec := s.do(t, http.MethodPost, "/api/payment/verify", body, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"verified":false,"message":"Payment verification failed"}`, rec.Body.String())
	})

	t.Run("verify match", func(t *testing.T) {
		sig := service.Sign(testKeySecret, "order_1|pay_1")
		body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"` + sig + `"}`
		rec := s.do(t, http.MethodPost, "/api/payment/verify", body, token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"verified":true,"message":"Payment verified successfully"}`, rec.Body.String())
	})

	t.Run("webhook", func(t *testing.T) {
		payload := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_9"}}}}`

		rec := s.do(t, http.MethodPost, "/api/payment/webhook", payload, "",
			"X-Razorpay-Signature", "bad")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid webhook signature", message(t, rec))

		rec = s.do(t, http.MethodPost, "/api/payment/webhook", payload, "",
			"X-Razorpay-Signature", service.Sign(testWebhookSecret, payload),
			"X-Razorpay-Event-Id", "evt_1")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := `{"email":"nobody@example.com","password":"secret123"}`

	for i := 0; i < 15; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, authLimitMessage, message(t, rec))

	// the catalog only counts against the general budget
	rec = s.do(t, http.MethodGet, "/api/media", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.clock.Advance(15 * time.Minute)
	rec = s.do(t, http.MethodPost, "/api/auth/login", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	s := newTestServer(t, testConfig())
	body := `{"email":"nobody@example.com","password":"secret123"}`

	for i := 0; i < 15; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", body, "",
			echo.HeaderXForwardedFor, fmt.Sprintf("10.0.0.%d", i+1),
			echo.HeaderXRealIP, fmt.Sprintf("10.0.1.%d", i+1))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", body, "",
		echo.HeaderXForwardedFor, "10.0.0.99")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthRateLimitTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustedProxies = []string{"not-a-cidr", "192.0.2.0/24"}
	s := newTestServer(t, cfg)
	body := `{"email":"nobody@example.com","password":"secret123"}`

	for i := 0; i < 15; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", body, "",
			echo.HeaderXForwardedFor, "203.0.113.7")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	rec := s.do(t, http.MethodPost, "/api/auth/login", body, "",
		echo.HeaderXForwardedFor, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// another client behind the same proxy has its own budget
	rec = s.do(t, http.MethodPost, "/api/auth/login", body, "",
		echo.HeaderXForwardedFor, "203.0.113.8")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.APIMax = 2
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/api/media", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/media", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apiLimitMessage, message(t, rec))

	// the banner sits outside the api group
	rec = s.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.clock.Advance(time.Minute)
	rec = s.do(t, http.MethodGet, "/api/media", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleErrorHidesInternalDetailsInProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantDetail  bool
	}{
		{name: "development", environment: "development", wantDetail: true},
		{name: "production", environment: "production", wantDetail: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Environment.Name = tt.environment
			s := newTestServer(t, cfg)

			rec := httptest.NewRecorder()
			c := s.echo.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			s.handleError(apperr.Internal(errors.New("connection reset")), c)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var body map[string]string
			decode(t, rec, &body)
			assert.Equal(t, "Internal Server Error", body["message"])
			if tt.wantDetail {
				assert.Contains(t, body["error"], "connection reset")
			} else {
				assert.NotContains(t, body, "error")
			}
		})
	}
}

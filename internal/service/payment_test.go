package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"lupora-api/internal/apperr"
	"lupora-api/internal/config"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/repository"
	"lupora-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "rzp_secret"
	testWebhookSecret = "whsec"
)

type fakeRazorpay struct {
	amount   int64
	currency string
	receipt  string
	err      error
}

func (f *fakeRazorpay) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*model.RazorpayOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.amount, f.currency, f.receipt = amountPaise, currency, receipt
	return &model.RazorpayOrder{ID: "order_GW1", Amount: amountPaise, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

type paymentEnv struct {
	db        *gorm.DB
	orderRepo repository.OrderRepository
	gateway   *fakeRazorpay
	payments  PaymentService
}

func newPaymentEnv(t *testing.T, cfg config.Razorpay) *paymentEnv {
	db := testutil.NewDB(t)
	env := &paymentEnv{
		db:        db,
		orderRepo: repository.NewOrderRepository(db),
		gateway:   &fakeRazorpay{},
	}
	env.payments = NewPaymentService(env.gateway, cfg, env.orderRepo, repository.NewWebhookEventRepository(db), zap.NewNop())
	return env
}

func configuredRazorpay() config.Razorpay {
	return config.Razorpay{KeyID: "rzp_test", KeySecret: testKeySecret, WebhookSecret: testWebhookSecret, Currency: "INR"}
}

func (e *paymentEnv) createOrder(t *testing.T, gatewayOrderID string, status model.PaymentStatus) *model.Order {
	t.Helper()

	order := &model.Order{
		UserID:          "u1",
		Items:           []model.OrderItem{{ProductID: "p1", Name: "Oud Mystique", Price: 6800, Quantity: 1}},
		TotalAmount:     6800,
		PaymentMethod:   model.PaymentMethodRazorpay,
		PaymentStatus:   status,
		OrderStatus:     model.OrderStatusPlaced,
		RazorpayOrderID: gatewayOrderID,
	}
	require.NoError(t, e.orderRepo.Create(context.Background(), e.db, order))
	return order
}

func (e *paymentEnv) status(t *testing.T, orderID string) model.PaymentStatus {
	t.Helper()

	order, err := e.orderRepo.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	return order.PaymentStatus
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{4500, 450000},
		{0.1 + 0.2, 30},
		{99.995, 10000},
		{1234.56, 123456},
		{0.01, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(tt.amount), "amount %v", tt.amount)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		env := newPaymentEnv(t, config.Razorpay{Currency: "INR"})
		_, err := env.payments.CreatePaymentIntent(ctx, dto.CreatePaymentRequest{Amount: 100})
		assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	})

	env := newPaymentEnv(t, configuredRazorpay())

	t.Run("invalid amount", func(t *testing.T) {
		for _, amount := range []float64{0, -10} {
			_, err := env.payments.CreatePaymentIntent(ctx, dto.CreatePaymentRequest{Amount: amount})
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		}
	})

	t.Run("converts to paise", func(t *testing.T) {
		resp, err := env.payments.CreatePaymentIntent(ctx, dto.CreatePaymentRequest{Amount: 14500})
		require.NoError(t, err)
		assert.Equal(t, dto.CreatePaymentResponse{OrderID: "order_GW1", Amount: 1450000, Currency: "INR"}, *resp)
		assert.Equal(t, int64(1450000), env.gateway.amount)
		assert.LessOrEqual(t, len(env.gateway.receipt), 40)
	})

	t.Run("gateway error", func(t *testing.T) {
		env.gateway.err = errors.New("razorpay error 500")
		defer func() { env.gateway.err = nil }()

		_, err := env.payments.CreatePaymentIntent(ctx, dto.CreatePaymentRequest{Amount: 100})
		require.Error(t, err)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	})
}

func TestVerifySignature(t *testing.T) {
	ctx := context.Background()
	env := newPaymentEnv(t, configuredRazorpay())
	order := env.createOrder(t, "order_GW1", model.PaymentStatusPending)
	signature := Sign(testKeySecret, "order_GW1|pay_1")

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.payments.VerifySignature(ctx, dto.VerifyPaymentRequest{RazorpayOrderID: "order_GW1"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("any single character mutation fails", func(t *testing.T) {
		for i := range signature {
			mutated := []byte(signature)
			if mutated[i] == 'a' {
				mutated[i] = 'b'
			} else {
				mutated[i] = 'a'
			}

			resp, err := env.payments.VerifySignature(ctx, dto.VerifyPaymentRequest{
				RazorpayOrderID:   "order_GW1",
				RazorpayPaymentID: "pay_1",
				RazorpaySignature: string(mutated),
			})
			require.NoError(t, err)
			require.False(t, resp.Verified, "position %d", i)
		}
		assert.Equal(t, model.PaymentStatusPending, env.status(t, order.ID))
	})

	t.Run("valid signature marks order paid", func(t *testing.T) {
		resp, err := env.payments.VerifySignature(ctx, dto.VerifyPaymentRequest{
			RazorpayOrderID:   "order_GW1",
			RazorpayPaymentID: "pay_1",
			RazorpaySignature: signature,
		})
		require.NoError(t, err)
		assert.True(t, resp.Verified)

		stored, err := env.orderRepo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, "pay_1", stored.RazorpayPaymentID)
	})

	t.Run("valid signature records payment on order placed as paid", func(t *testing.T) {
		placed := env.createOrder(t, "order_GW9", model.PaymentStatusPaid)

		resp, err := env.payments.VerifySignature(ctx, dto.VerifyPaymentRequest{
			RazorpayOrderID:   "order_GW9",
			RazorpayPaymentID: "pay_9",
			RazorpaySignature: Sign(testKeySecret, "order_GW9|pay_9"),
		})
		require.NoError(t, err)
		assert.True(t, resp.Verified)

		stored, err := env.orderRepo.FindByID(ctx, placed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, "pay_9", stored.RazorpayPaymentID)
	})

	t.Run("valid signature without order is a no-op", func(t *testing.T) {
		resp, err := env.payments.VerifySignature(ctx, dto.VerifyPaymentRequest{
			RazorpayOrderID:   "order_unknown",
			RazorpayPaymentID: "pay_2",
			RazorpaySignature: Sign(testKeySecret, "order_unknown|pay_2"),
		})
		require.NoError(t, err)
		assert.True(t, resp.Verified)
	})
}

func webhookHeaders(body []byte, eventID string) http.Header {
	h := http.Header{}
	h.Set(HeaderRazorpaySignature, Sign(testWebhookSecret, string(body)))
	if eventID != "" {
		h.Set(HeaderRazorpayEventID, eventID)
	}
	return h
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	env := newPaymentEnv(t, configuredRazorpay())
	order := env.createOrder(t, "order_GW1", model.PaymentStatusPending)

	captured := []byte(`{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_GW1","status":"captured"}}}}`)
	failed := []byte(`{"entity":"event","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_8","order_id":"order_GW1","status":"failed"}}}}`)

	t.Run("bad signature", func(t *testing.T) {
		h := webhookHeaders(captured, "evt_1")
		h.Set(HeaderRazorpaySignature, "deadbeef")
		err := env.payments.HandleWebhook(ctx, h, captured)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, model.PaymentStatusPending, env.status(t, order.ID))
	})

	t.Run("captured marks paid", func(t *testing.T) {
		require.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(captured, "evt_1"), captured))
		assert.Equal(t, model.PaymentStatusPaid, env.status(t, order.ID))
	})

	t.Run("duplicate event is skipped", func(t *testing.T) {
		require.NoError(t, env.db.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("payment_status", model.PaymentStatusPending).Error)

		require.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(captured, "evt_1"), captured))
		assert.Equal(t, model.PaymentStatusPending, env.status(t, order.ID))

		require.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(captured, "evt_2"), captured))
		assert.Equal(t, model.PaymentStatusPaid, env.status(t, order.ID))
	})

	t.Run("failure never downgrades paid", func(t *testing.T) {
		require.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(failed, "evt_3"), failed))
		assert.Equal(t, model.PaymentStatusPaid, env.status(t, order.ID))
	})

	t.Run("failure marks pending order failed", func(t *testing.T) {
		pending := env.createOrder(t, "order_GW2", model.PaymentStatusPending)
		body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_7","order_id":"order_GW2"}}}}`)

		require.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(body, ""), body))
		assert.Equal(t, model.PaymentStatusFailed, env.status(t, pending.ID))
	})

	t.Run("unknown event is acknowledged", func(t *testing.T) {
		body := []byte(`{"event":"refund.created","payload":{}}`)
		assert.NoError(t, env.payments.HandleWebhook(ctx, webhookHeaders(body, "evt_4"), body))
	})

	t.Run("not configured", func(t *testing.T) {
		unconfigured := newPaymentEnv(t, config.Razorpay{})
		err := unconfigured.payments.HandleWebhook(ctx, webhookHeaders(captured, "evt_5"), captured)
		assert.True(t, apperr.Is(err, apperr.KindUnavailable))
	})
}

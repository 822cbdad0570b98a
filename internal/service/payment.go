package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lupora-api/internal/apperr"
	"lupora-api/internal/client"
	"lupora-api/internal/config"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/repository"
	"lupora-api/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, req dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error)
	VerifySignature(ctx context.Context, req dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type paymentServiceImpl struct {
	razorpayClient   client.RazorpayClient
	cfg              config.Razorpay
	orderRepo        repository.OrderRepository
	webhookEventRepo repository.WebhookEventRepository
	log              *zap.Logger
}

func NewPaymentService(
	razorpayClient client.RazorpayClient,
	cfg config.Razorpay,
	orderRepo repository.OrderRepository,
	webhookEventRepo repository.WebhookEventRepository,
	log *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		razorpayClient:   razorpayClient,
		cfg:              cfg,
		orderRepo:        orderRepo,
		webhookEventRepo: webhookEventRepo,
		log:              log.Named("payments"),
	}
}

func (s *paymentServiceImpl) CreatePaymentIntent(ctx context.Context, req dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	if !s.cfg.Configured() {
		return nil, apperr.Unavailable("Payment gateway not configured")
	}
	if req.Amount <= 0 {
		return nil, apperr.Validation("Invalid amount")
	}

	amountPaise := ToMinorUnits(req.Amount)
	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	order, err := s.razorpayClient.CreateOrder(ctx, amountPaise, s.cfg.Currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("razorpay api create order: %w", err)
	}

	s.log.Info("payment intent created",
		zap.String("razorpay_order_id", order.ID),
		zap.Int64("amount", order.Amount),
	)

	return &dto.CreatePaymentResponse{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

func (s *paymentServiceImpl) VerifySignature(ctx context.Context, req dto.VerifyPaymentRequest) (*dto.VerifyPaymentResponse, error) {
	req.RazorpayOrderID = strings.TrimSpace(req.RazorpayOrderID)
	req.RazorpayPaymentID = strings.TrimSpace(req.RazorpayPaymentID)
	req.RazorpaySignature = strings.TrimSpace(req.RazorpaySignature)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if s.cfg.KeySecret == "" {
		return nil, apperr.Unavailable("Payment gateway not configured")
	}

	expected := Sign(s.cfg.KeySecret, req.RazorpayOrderID+"|"+req.RazorpayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(req.RazorpaySignature)) {
		s.log.Warn("payment signature mismatch", zap.String("razorpay_order_id", req.RazorpayOrderID))
		return &dto.VerifyPaymentResponse{
			Verified: false,
			Message:  "Payment verification failed",
		}, nil
	}

	updated, err := s.orderRepo.MarkPaidByGatewayOrderID(ctx, req.RazorpayOrderID, req.RazorpayPaymentID)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	s.log.Info("payment verified",
		zap.String("razorpay_order_id", req.RazorpayOrderID),
		zap.Int64("orders_updated", updated),
	)

	return &dto.VerifyPaymentResponse{
		Verified: true,
		Message:  "Payment verified successfully",
	}, nil
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if s.cfg.WebhookSecret == "" {
		return apperr.Unavailable("Webhook not configured")
	}

	expected := Sign(s.cfg.WebhookSecret, string(body))
	if !hmac.Equal([]byte(expected), []byte(headers.Get(HeaderRazorpaySignature))) {
		return apperr.Validation("Invalid webhook signature")
	}

	eventID := headers.Get(HeaderRazorpayEventID)
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	processed, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		s.log.Debug("duplicate webhook event", zap.String("event_id", eventID))
		return nil
	}

	var event model.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Validation("Invalid webhook payload")
	}

	switch event.Event {
	case "payment.captured":
		payment := event.Payload.Payment.Entity
		err = s.markPaid(ctx, payment.OrderID, payment.ID)
	case "order.paid":
		err = s.markPaid(ctx, event.Payload.Order.Entity.ID, event.Payload.Payment.Entity.ID)
	case "payment.failed":
		err = s.markFailed(ctx, event.Payload.Payment.Entity.OrderID)
	default:
		s.log.Debug("ignoring webhook event", zap.String("event", event.Event))
	}
	if err != nil {
		return err
	}

	err = s.webhookEventRepo.MarkProcessed(ctx, eventID, event.Event)
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("mark webhook processed: %w", err)
	}

	return nil
}

func (s *paymentServiceImpl) markPaid(ctx context.Context, gatewayOrderID, paymentID string) error {
	if gatewayOrderID == "" {
		return apperr.Validation("Webhook payload has no order id")
	}

	updated, err := s.orderRepo.MarkPaidByGatewayOrderID(ctx, gatewayOrderID, paymentID)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	s.log.Info("webhook marked order paid",
		zap.String("razorpay_order_id", gatewayOrderID),
		zap.Int64("orders_updated", updated),
	)
	return nil
}

func (s *paymentServiceImpl) markFailed(ctx context.Context, gatewayOrderID string) error {
	if gatewayOrderID == "" {
		return apperr.Validation("Webhook payload has no order id")
	}

	updated, err := s.orderRepo.MarkFailedByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}

	s.log.Info("webhook marked order failed",
		zap.String("razorpay_order_id", gatewayOrderID),
		zap.Int64("orders_updated", updated),
	)
	return nil
}

// Sign returns the hex HMAC-SHA256 of message under secret.
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// ToMinorUnits converts a rupee amount to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

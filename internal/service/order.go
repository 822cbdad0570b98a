package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lupora-api/internal/apperr"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/notify"
	"lupora-api/internal/repository"
	"lupora-api/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLength = 128

type OrderService interface {
	// PlaceOrder reports created=false when the idempotency key replays an earlier checkout.
	PlaceOrder(ctx context.Context, userID string, req dto.PlaceOrderRequest, idempotencyKey string) (order *model.Order, created bool, err error)
	ListOrders(ctx context.Context, userID string) ([]*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
}

type orderServiceImpl struct {
	db              *gorm.DB
	orderRepo       repository.OrderRepository
	cartRepo        repository.CartRepository
	productRepo     repository.ProductRepository
	userRepo        repository.UserRepository
	idempotencyRepo repository.IdempotencyRepository
	publisher       notify.Publisher
	locks           *UserLocks
	idempotencyTTL  time.Duration
	now             func() time.Time
	log             *zap.Logger
}

type OrderServiceDeps struct {
	DB              *gorm.DB
	OrderRepo       repository.OrderRepository
	CartRepo        repository.CartRepository
	ProductRepo     repository.ProductRepository
	UserRepo        repository.UserRepository
	IdempotencyRepo repository.IdempotencyRepository
	Publisher       notify.Publisher
	Locks           *UserLocks
	IdempotencyTTL  time.Duration
	Now             func() time.Time
}

func NewOrderService(deps OrderServiceDeps, log *zap.Logger) OrderService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &orderServiceImpl{
		db:              deps.DB,
		orderRepo:       deps.OrderRepo,
		cartRepo:        deps.CartRepo,
		productRepo:     deps.ProductRepo,
		userRepo:        deps.UserRepo,
		idempotencyRepo: deps.IdempotencyRepo,
		publisher:       deps.Publisher,
		locks:           deps.Locks,
		idempotencyTTL:  deps.IdempotencyTTL,
		now:             deps.Now,
		log:             log.Named("orders"),
	}
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, userID string, req dto.PlaceOrderRequest, idempotencyKey string) (*model.Order, bool, error) {
	req = sanitizeOrderRequest(req)
	if err := validate.Struct(req); err != nil {
		return nil, false, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		return nil, false, apperr.Validation("Idempotency-Key is too long")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if idempotencyKey != "" {
		previous, err := s.replay(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if previous != nil {
			return previous, false, nil
		}
	}

	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperr.Validation("Cart is empty")
	}
	if err != nil {
		return nil, false, fmt.Errorf("find cart: %w", err)
	}

	lines, err := resolveCart(ctx, s.productRepo, cart)
	if err != nil {
		return nil, false, err
	}
	if len(lines) == 0 {
		return nil, false, apperr.Validation("Cart is empty")
	}

	order := newOrderSnapshot(userID, req, lines)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		if idempotencyKey != "" {
			err := s.idempotencyRepo.Create(ctx, tx, &model.IdempotencyKey{
				UserID:    userID,
				Key:       idempotencyKey,
				OrderID:   order.ID,
				ExpiresAt: s.now().Add(s.idempotencyTTL),
			})
			if err != nil {
				return fmt.Errorf("store idempotency key: %w", err)
			}
		}

		if err := s.cartRepo.DeleteByUserID(ctx, tx, userID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Float64("total_amount", order.TotalAmount),
	)

	s.notify(ctx, userID, order)

	return order, true, nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder hides other users' orders behind the same NotFound as missing ones.
func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, apperr.NotFound("Order not found")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}

	if order.UserID != userID {
		return nil, apperr.NotFound("Order not found")
	}

	return order, nil
}

func (s *orderServiceImpl) replay(ctx context.Context, userID, key string) (*model.Order, error) {
	record, err := s.idempotencyRepo.Find(ctx, userID, key, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find idempotency key: %w", err)
	}

	order, err := s.orderRepo.FindByID(ctx, record.OrderID)
	if err != nil {
		return nil, fmt.Errorf("find replayed order: %w", err)
	}

	s.log.Info("checkout replayed", zap.String("order_id", order.ID), zap.String("user_id", userID))
	return order, nil
}

func (s *orderServiceImpl) notify(ctx context.Context, userID string, order *model.Order) {
	if s.publisher == nil {
		return
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		s.log.Warn("skip order notification", zap.String("order_id", order.ID), zap.Error(err))
		return
	}

	s.publisher.Publish(notify.OrderPlaced{
		Order:         order,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
	})
}

// newOrderSnapshot copies product attributes so later catalog changes do not alter the order.
func newOrderSnapshot(userID string, req dto.PlaceOrderRequest, lines []resolvedLine) *model.Order {
	items := make([]model.OrderItem, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		items[i] = model.OrderItem{
			ProductID: line.product.ID,
			Name:      line.product.Name,
			Price:     line.product.Price,
			Quantity:  line.quantity,
			Image:     line.product.Image,
		}
		total = total.Add(lineSubtotal(line.product.Price, line.quantity))
	}

	method := paymentMethod(req.PaymentMethod)
	status := model.PaymentStatusPending
	if method != model.PaymentMethodCOD {
		status = model.PaymentStatusPaid
	}

	return &model.Order{
		UserID:      userID,
		Items:       items,
		TotalAmount: total.InexactFloat64(),
		ShippingAddress: model.ShippingAddress{
			FullName: req.ShippingAddress.FullName,
			Phone:    req.ShippingAddress.Phone,
			Address:  req.ShippingAddress.Address,
			City:     req.ShippingAddress.City,
			State:    req.ShippingAddress.State,
			Pincode:  req.ShippingAddress.Pincode,
		},
		PaymentMethod:     method,
		PaymentStatus:     status,
		OrderStatus:       model.OrderStatusPlaced,
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
	}
}

// paymentMethod maps the generic "gateway" method onto the only gateway wired in.
func paymentMethod(method string) model.PaymentMethod {
	if method == "gateway" {
		return model.PaymentMethodRazorpay
	}
	return model.PaymentMethod(method)
}

func sanitizeOrderRequest(req dto.PlaceOrderRequest) dto.PlaceOrderRequest {
	addr := &req.ShippingAddress
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Address = strings.TrimSpace(addr.Address)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.Pincode = strings.TrimSpace(addr.Pincode)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.RazorpayOrderID = strings.TrimSpace(req.RazorpayOrderID)
	req.RazorpayPaymentID = strings.TrimSpace(req.RazorpayPaymentID)
	return req
}

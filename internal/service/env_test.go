package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"lupora-api/internal/auth"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/notify"
	"lupora-api/internal/repository"
	"lupora-api/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.OrderPlaced
}

func (p *recordingPublisher) Publish(event notify.OrderPlaced) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []notify.OrderPlaced {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.OrderPlaced(nil), p.events...)
}

type testEnv struct {
	db              *gorm.DB
	userRepo        repository.UserRepository
	productRepo     repository.ProductRepository
	cartRepo        repository.CartRepository
	orderRepo       repository.OrderRepository
	idempotencyRepo repository.IdempotencyRepository
	locks           *UserLocks
	tokens          auth.TokenManager
	publisher       *recordingPublisher
	users           UserService
	carts           CartService
	orders          OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	env := &testEnv{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		productRepo:     repository.NewProductRepository(db),
		cartRepo:        repository.NewCartRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		idempotencyRepo: repository.NewIdempotencyRepository(db),
		locks:           NewUserLocks(),
		tokens:          auth.NewTokenManager("test-secret", 7*24*time.Hour),
		publisher:       &recordingPublisher{},
	}

	env.users = NewUserService(env.userRepo, env.tokens, bcrypt.MinCost, zap.NewNop())
	env.carts = NewCartService(db, env.cartRepo, env.productRepo, env.locks)
	env.orders = env.newOrderService(env.orderRepo)

	return env
}

func (e *testEnv) newOrderService(orderRepo repository.OrderRepository) OrderService {
	return NewOrderService(OrderServiceDeps{
		DB:              e.db,
		OrderRepo:       orderRepo,
		CartRepo:        e.cartRepo,
		ProductRepo:     e.productRepo,
		UserRepo:        e.userRepo,
		IdempotencyRepo: e.idempotencyRepo,
		Publisher:       e.publisher,
		Locks:           e.locks,
		IdempotencyTTL:  24 * time.Hour,
	}, zap.NewNop())
}

func (e *testEnv) addToCart(t *testing.T, userID string, product *model.Product, quantity int) *dto.CartView {
	t.Helper()

	view, err := e.carts.AddItem(context.Background(), userID, dto.AddToCartRequest{
		ProductID: product.ID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return view
}

func validOrderRequest(method string) dto.PlaceOrderRequest {
	return dto.PlaceOrderRequest{
		ShippingAddress: dto.ShippingAddress{
			FullName: "Asha Kulkarni",
			Phone:    "9876543210",
			Address:  "12 MG Road",
			City:     "Pune",
			State:    "Maharashtra",
			Pincode:  "411001",
		},
		PaymentMethod: method,
	}
}

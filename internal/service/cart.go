package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lupora-api/internal/apperr"
	"lupora-api/internal/dto"
	"lupora-api/internal/model"
	"lupora-api/internal/repository"
	"lupora-api/internal/validate"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 99

type CartService interface {
	View(ctx context.Context, userID string) (*dto.CartView, error)
	AddItem(ctx context.Context, userID string, req dto.AddToCartRequest) (*dto.CartView, error)
	UpdateQuantity(ctx context.Context, userID string, req dto.UpdateCartRequest) (*dto.CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (*dto.CartView, error)
	Clear(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	db          *gorm.DB
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	locks       *UserLocks
}

func NewCartService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	locks *UserLocks,
) CartService {
	return &cartServiceImpl{
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		locks:       locks,
	}
}

func (s *cartServiceImpl) View(ctx context.Context, userID string) (*dto.CartView, error) {
	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

func (s *cartServiceImpl) AddItem(ctx context.Context, userID string, req dto.AddToCartRequest) (*dto.CartView, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if _, err := s.productRepo.FindByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &model.Cart{UserID: userID}
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == req.ProductID {
			cart.Items[i].Quantity = min(cart.Items[i].Quantity+req.Quantity, MaxLineQuantity)
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, model.CartItem{ProductID: req.ProductID, Quantity: req.Quantity})
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	return s.view(ctx, cart)
}

// UpdateQuantity sets a line's quantity exactly; a quantity of zero or less removes the line.
func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, userID string, req dto.UpdateCartRequest) (*dto.CartView, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperr.NotFound("Cart not found")
	}

	idx := lineIndex(cart, req.ProductID)
	switch {
	case idx < 0 && req.Quantity <= 0:
		return s.view(ctx, cart)
	case idx < 0:
		return nil, apperr.NotFound("Item not found in cart")
	case req.Quantity <= 0:
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	default:
		cart.Items[idx].Quantity = req.Quantity
	}

	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	return s.view(ctx, cart)
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID string) (*dto.CartView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &dto.CartView{Items: []dto.CartLine{}}, nil
	}

	idx := lineIndex(cart, strings.TrimSpace(productID))
	if idx < 0 {
		return s.view(ctx, cart)
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	return s.view(ctx, cart)
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.cartRepo.DeleteByUserID(ctx, tx, userID)
	})
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	return nil
}

// findCart returns nil without error when the user has no cart.
func (s *cartServiceImpl) findCart(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return cart, nil
}

func (s *cartServiceImpl) view(ctx context.Context, cart *model.Cart) (*dto.CartView, error) {
	lines, err := resolveCart(ctx, s.productRepo, cart)
	if err != nil {
		return nil, err
	}
	return buildView(lines), nil
}

// resolvedLine is a cart line joined with its live product.
type resolvedLine struct {
	product  *model.Product
	quantity int
}

// resolveCart joins cart lines with live products and drops lines whose product is gone.
func resolveCart(ctx context.Context, productRepo repository.ProductRepository, cart *model.Cart) ([]resolvedLine, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}

	products, err := productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find cart products: %w", err)
	}

	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]resolvedLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, resolvedLine{product: product, quantity: item.Quantity})
	}

	return lines, nil
}

func buildView(lines []resolvedLine) *dto.CartView {
	view := &dto.CartView{Items: make([]dto.CartLine, 0, len(lines))}
	total := decimal.Zero

	for _, line := range lines {
		view.Items = append(view.Items, dto.CartLine{
			ProductID: line.product.ID,
			Name:      line.product.Name,
			Category:  line.product.Category,
			Image:     line.product.Image,
			Price:     line.product.Price,
			Quantity:  line.quantity,
		})
		view.TotalItems += line.quantity
		total = total.Add(lineSubtotal(line.product.Price, line.quantity))
	}

	view.TotalPrice = total.InexactFloat64()
	return view
}

func lineSubtotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

func lineIndex(cart *model.Cart, productID string) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

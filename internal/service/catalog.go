package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lupora-api/internal/apperr"
	"lupora-api/internal/cache"
	"lupora-api/internal/client"
	"lupora-api/internal/model"
	"lupora-api/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	productsCacheKey = "products"
	mediaCacheKey    = "media"
)

type CatalogService interface {
	// ListProducts reports cached=true when the store was not consulted.
	ListProducts(ctx context.Context) (products []*model.Product, cached bool, err error)
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	ListMedia(ctx context.Context) (media []*model.Media, cached bool, err error)
}

type catalogServiceImpl struct {
	productRepo repository.ProductRepository
	mediaRepo   repository.MediaRepository
	health      client.HealthCheck
	products    *cache.TTL[[]*model.Product]
	media       *cache.TTL[[]*model.Media]
	log         *zap.Logger
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	mediaRepo repository.MediaRepository,
	health client.HealthCheck,
	ttl time.Duration,
	now func() time.Time,
	log *zap.Logger,
) CatalogService {
	return &catalogServiceImpl{
		productRepo: productRepo,
		mediaRepo:   mediaRepo,
		health:      health,
		products:    cache.NewTTL[[]*model.Product](ttl, now),
		media:       cache.NewTTL[[]*model.Media](ttl, now),
		log:         log.Named("catalog"),
	}
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context) ([]*model.Product, bool, error) {
	return s.products.GetOrLoad(ctx, productsCacheKey, func(ctx context.Context) ([]*model.Product, error) {
		if err := s.checkStore(ctx); err != nil {
			return nil, err
		}

		products, err := s.productRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}

		s.log.Debug("products loaded from store", zap.Int("count", len(products)))
		return products, nil
	})
}

func (s *catalogServiceImpl) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return nil, apperr.Validation("Invalid product ID")
	}

	if products, ok := s.products.Get(productsCacheKey); ok {
		for _, p := range products {
			if p.ID == productID {
				return p, nil
			}
		}
	}

	if err := s.checkStore(ctx); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}

	return product, nil
}

func (s *catalogServiceImpl) ListMedia(ctx context.Context) ([]*model.Media, bool, error) {
	return s.media.GetOrLoad(ctx, mediaCacheKey, func(ctx context.Context) ([]*model.Media, error) {
		if err := s.checkStore(ctx); err != nil {
			return nil, err
		}

		media, err := s.mediaRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list media: %w", err)
		}

		s.log.Debug("media loaded from store", zap.Int("count", len(media)))
		return media, nil
	})
}

func (s *catalogServiceImpl) checkStore(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	if err := s.health(ctx); err != nil {
		s.log.Warn("database not connected", zap.Error(err))
		return apperr.Unavailable("Database not connected")
	}
	return nil
}

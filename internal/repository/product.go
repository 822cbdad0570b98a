package repository

import (
	"context"
	"errors"
	"strings"

	"lupora-api/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	List(ctx context.Context) ([]*model.Product, error)
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	UpsertByName(ctx context.Context, product *model.Product) (bool, error)
	RewriteImageExtension(ctx context.Context, from, to string) (int64, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	if len(productIDs) == 0 {
		return []*model.Product{}, nil
	}

	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

// UpsertByName creates the product or refreshes the catalog fields of the
// existing one with the same name. It reports whether a row was created.
func (r *productRepoImpl) UpsertByName(ctx context.Context, product *model.Product) (bool, error) {
	var existing model.Product
	err := r.db.WithContext(ctx).
		Where("name = ?", product.Name).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, r.db.WithContext(ctx).Create(product).Error
	}
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"price":       product.Price,
		"description": product.Description,
	}
	if product.Category != "" {
		updates["category"] = product.Category
	}
	if product.Image != "" {
		updates["image"] = product.Image
	}

	product.ID = existing.ID
	return false, r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
}

func (r *productRepoImpl) RewriteImageExtension(ctx context.Context, from, to string) (int64, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("image LIKE ?", "%"+from).
		Find(&products).Error
	if err != nil {
		return 0, err
	}

	var updated int64
	for _, product := range products {
		newImage := strings.TrimSuffix(product.Image, from) + to
		result := r.db.WithContext(ctx).
			Model(&model.Product{}).
			Where("id = ?", product.ID).
			Update("image", newImage)
		if result.Error != nil {
			return updated, result.Error
		}
		updated += result.RowsAffected
	}

	return updated, nil
}

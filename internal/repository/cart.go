package repository

import (
	"context"
	"time"

	"lupora-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID string) error
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error)
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

func (r *cartRepoImpl) FindByUserID(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error

	if err != nil {
		return nil, err
	}

	return &cart, nil
}

// Save persists the cart and replaces its lines with cart.Items.
func (r *cartRepoImpl) Save(ctx context.Context, cart *model.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cart.ID == "" {
			if err := tx.Omit("Items").Create(cart).Error; err != nil {
				return err
			}
		} else {
			cart.UpdatedAt = time.Now()
			err := tx.Model(&model.Cart{}).
				Where("id = ?", cart.ID).
				Update("updated_at", cart.UpdatedAt).Error
			if err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}

		if len(cart.Items) == 0 {
			return nil
		}

		items := make([]model.CartItem, len(cart.Items))
		for i, item := range cart.Items {
			items[i] = model.CartItem{
				CartID:    cart.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		cart.Items = items

		return nil
	})
}

func (r *cartRepoImpl) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID string) error {
	var cartIDs []string
	err := tx.WithContext(ctx).Model(&model.Cart{}).
		Where("user_id = ?", userID).
		Pluck("id", &cartIDs).Error
	if err != nil {
		return err
	}

	return r.deleteCarts(ctx, tx, cartIDs)
}

// DeleteIdleSince removes carts not modified since cutoff and returns how many went.
// A cart touched after its row was selected survives with its items.
func (r *cartRepoImpl) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cartIDs []string
		err := tx.Model(&model.Cart{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("updated_at < ?", cutoff).
			Pluck("id", &cartIDs).Error
		if err != nil || len(cartIDs) == 0 {
			return err
		}

		result := tx.Where("id IN ?", cartIDs).
			Where("updated_at < ?", cutoff).
			Delete(&model.Cart{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected

		return tx.Where("cart_id IN ?", cartIDs).
			Where("cart_id NOT IN (?)", tx.Model(&model.Cart{}).Select("id")).
			Delete(&model.CartItem{}).Error
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

func (r *cartRepoImpl) deleteCarts(ctx context.Context, tx *gorm.DB, cartIDs []string) error {
	if len(cartIDs) == 0 {
		return nil
	}

	if err := tx.WithContext(ctx).Where("cart_id IN ?", cartIDs).Delete(&model.CartItem{}).Error; err != nil {
		return err
	}

	return tx.WithContext(ctx).Where("id IN ?", cartIDs).Delete(&model.Cart{}).Error
}

package repository

import (
	"context"
	"time"

	"lupora-api/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	MarkPaidByGatewayOrderID(ctx context.Context, gatewayOrderID, paymentID string) (int64, error)
	MarkFailedByGatewayOrderID(ctx context.Context, gatewayOrderID string) (int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create inserts the order together with its items.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkPaidByGatewayOrderID sets every order for the gateway order to paid and
// records paymentID, including orders that were already stored as paid.
func (r *orderRepoImpl) MarkPaidByGatewayOrderID(ctx context.Context, gatewayOrderID, paymentID string) (int64, error) {
	updates := map[string]interface{}{
		"payment_status": model.PaymentStatusPaid,
		"updated_at":     time.Now(),
	}
	if paymentID != "" {
		updates["razorpay_payment_id"] = paymentID
	}

	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("razorpay_order_id = ?", gatewayOrderID).
		Updates(updates)

	return result.RowsAffected, result.Error
}

// MarkFailedByGatewayOrderID only touches pending orders, so a paid order is never downgraded.
func (r *orderRepoImpl) MarkFailedByGatewayOrderID(ctx context.Context, gatewayOrderID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("razorpay_order_id = ?", gatewayOrderID).
		Where("payment_status = ?", model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusFailed,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected, result.Error
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

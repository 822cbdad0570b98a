package repository

import (
	"context"
	"time"

	"lupora-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdempotencyRepository interface {
	Find(ctx context.Context, userID, key string, now time.Time) (*model.IdempotencyKey, error)
	Create(ctx context.Context, tx *gorm.DB, record *model.IdempotencyKey) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type idempotencyRepoImpl struct {
	db *gorm.DB
}

func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepoImpl{
		db: db,
	}
}

// Find returns gorm.ErrRecordNotFound for unknown or expired keys.
func (r *idempotencyRepoImpl) Find(ctx context.Context, userID, key string, now time.Time) (*model.IdempotencyKey, error) {
	var record model.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idem_key = ?", userID, key).
		Where("expires_at > ?", now).
		First(&record).Error

	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Create overwrites an expired record that has not been purged yet.
func (r *idempotencyRepoImpl) Create(ctx context.Context, tx *gorm.DB, record *model.IdempotencyKey) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "idem_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"order_id":   record.OrderID,
			"expires_at": record.ExpiresAt,
			"created_at": time.Now(),
		}),
	}).Create(record).Error
}

func (r *idempotencyRepoImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.IdempotencyKey{})

	return result.RowsAffected, result.Error
}

package repository

import (
	"context"

	"lupora-api/internal/model"

	"gorm.io/gorm"
)

type MediaRepository interface {
	List(ctx context.Context) ([]*model.Media, error)
	Create(ctx context.Context, media *model.Media) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
}

type mediaRepoImpl struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepoImpl{
		db: db,
	}
}

func (r *mediaRepoImpl) List(ctx context.Context) ([]*model.Media, error) {
	var media []*model.Media
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&media).Error; err != nil {
		return nil, err
	}

	return media, nil
}

func (r *mediaRepoImpl) Create(ctx context.Context, media *model.Media) error {
	return r.db.WithContext(ctx).Create(media).Error
}

func (r *mediaRepoImpl) ExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Media{}).
		Where("url = ?", url).
		Count(&count).Error

	return count > 0, err
}

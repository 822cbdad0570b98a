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

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewService interface {
	ListReviews(ctx context.Context, productID string) ([]*model.Review, error)
	CreateReview(ctx context.Context, userID, productID string, req dto.CreateReviewRequest) (*model.Review, error)
}

type reviewServiceImpl struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
}

func NewReviewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
) ReviewService {
	return &reviewServiceImpl{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
	}
}

func (s *reviewServiceImpl) ListReviews(ctx context.Context, productID string) ([]*model.Review, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}

	reviews, err := s.reviewRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *reviewServiceImpl) CreateReview(ctx context.Context, userID, productID string, req dto.CreateReviewRequest) (*model.Review, error) {
	req.Comment = strings.TrimSpace(req.Comment)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		UserName:  user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("You have already reviewed this product")
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

func (s *reviewServiceImpl) ensureProduct(ctx context.Context, productID string) error {
	if _, err := uuid.Parse(productID); err != nil {
		return apperr.Validation("Invalid product ID")
	}

	_, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Product not found")
	}
	if err != nil {
		return fmt.Errorf("find product: %w", err)
	}
	return nil
}

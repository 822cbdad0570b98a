package handler

import (
	"net/http"

	"lupora-api/internal/dto"
	"lupora-api/internal/middleware"
	"lupora-api/internal/service"

	"github.com/labstack/echo/v4"
)

type ReviewHandler struct {
	reviewService service.ReviewService
}

func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

func (h *ReviewHandler) ListReviews(c echo.Context) error {
	ctx := c.Request().Context()

	reviews, err := h.reviewService.ListReviews(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	review, err := h.reviewService.CreateReview(ctx, middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, review)
}

package handler

import (
	"net/http"

	"lupora-api/internal/dto"
	"lupora-api/internal/middleware"
	"lupora-api/internal/service"

	"github.com/labstack/echo/v4"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.cartService.View(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, view)
}

func (h *CartHandler) AddItem(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	view, err := h.cartService.AddItem(ctx, middleware.UserID(c), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CartResponse{Message: "Item added to cart", CartView: *view})
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.UpdateCartRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	view, err := h.cartService.UpdateQuantity(ctx, middleware.UserID(c), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CartResponse{Message: "Cart updated", CartView: *view})
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.cartService.RemoveItem(ctx, middleware.UserID(c), c.Param("productId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CartResponse{Message: "Item removed from cart", CartView: *view})
}

func (h *CartHandler) Clear(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.cartService.Clear(ctx, middleware.UserID(c)); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CartResponse{
		Message:  "Cart cleared",
		CartView: dto.CartView{Items: []dto.CartLine{}},
	})
}

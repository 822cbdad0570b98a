package handler

import (
	"fmt"
	"net/http"
	"time"

	"lupora-api/internal/service"

	"github.com/labstack/echo/v4"
)

const headerCacheStatus = "X-Cache"

type CatalogHandler struct {
	catalogService service.CatalogService
	cacheControl   string
}

func NewCatalogHandler(catalogService service.CatalogService, maxAge time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		cacheControl:   fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())),
	}
}

func (h *CatalogHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, cached, err := h.catalogService.ListProducts(ctx)
	if err != nil {
		return err
	}

	h.setCacheHeaders(c, cached)
	return c.JSON(http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	product, err := h.catalogService.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHandler) ListMedia(c echo.Context) error {
	ctx := c.Request().Context()

	media, cached, err := h.catalogService.ListMedia(ctx)
	if err != nil {
		return err
	}

	h.setCacheHeaders(c, cached)
	return c.JSON(http.StatusOK, media)
}

func (h *CatalogHandler) setCacheHeaders(c echo.Context, cached bool) {
	header := c.Response().Header()
	header.Set(echo.HeaderCacheControl, h.cacheControl)
	if cached {
		header.Set(headerCacheStatus, "HIT")
	} else {
		header.Set(headerCacheStatus, "MISS")
	}
}

// Package handler adapts HTTP requests to service calls.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var errInvalidBody = echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")

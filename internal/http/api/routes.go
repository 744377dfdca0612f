package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the verification endpoints under the given Echo group.
// apiKeyAuth guards every endpoint.
func RegisterRoutes(g *echo.Group, h *Handler, apiKeyAuth echo.MiddlewareFunc) {
	g.Use(apiKeyAuth)

	// Check a response the caller fetched itself
	g.POST("/verify", h.Verify)

	// Re-verify a response kept by this process
	g.GET("/license/:product_id/:key", h.GetStoredLicense)
}

// RegisterStatus wires the HTML status page.
func RegisterStatus(e *echo.Echo, h *Handler, apiKeyAuth echo.MiddlewareFunc) {
	e.GET("/status", h.Status, apiKeyAuth)
}

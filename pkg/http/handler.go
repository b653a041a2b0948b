package http

import "github.com/labstack/echo/v4"

// Handler mounts a group of API routes on the shared server. Server skips
// nil handlers, so optional features may be passed as nil.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

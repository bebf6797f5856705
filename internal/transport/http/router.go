package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sweetshop/sweet-shop/internal/handlers"
	"github.com/sweetshop/sweet-shop/internal/middleware/auth"
)

type Deps struct {
	Guard         *auth.Guard
	AuthHandler   *handlers.AuthHandler
	SweetHandler  *handlers.SweetHandler
	SearchHandler *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Sweet Shop API running"})
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	api.POST("/auth/register", d.AuthHandler.Register)
	api.POST("/auth/login", d.AuthHandler.Login)

	sweets := api.Group("/sweets", d.Guard.RequireLogin)

	sweets.POST("", d.SweetHandler.CreateSweet)
	sweets.GET("", d.SweetHandler.ListSweets)
	sweets.GET("/search", d.SweetHandler.SearchSweets)
	sweets.PUT("/:id", d.SweetHandler.UpdateSweet)
	sweets.POST("/:id/purchase", d.SweetHandler.PurchaseSweet)

	sweets.DELETE("/:id", d.SweetHandler.DeleteSweet, d.Guard.RequireAdmin)
	sweets.POST("/:id/restock", d.SweetHandler.RestockSweet, d.Guard.RequireAdmin)

	if d.SearchHandler != nil {
		sweets.GET("/fulltext", d.SearchHandler.Fulltext)
	}
}

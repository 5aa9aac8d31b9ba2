package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/handlers"
	authmw "github.com/ajali-app/backend/internal/middleware/auth"
)

type Deps struct {
	DB              *gorm.DB
	AuthHandler     *handlers.AuthHandler
	IncidentHandler *handlers.IncidentHandler
	SearchHandler   *handlers.SearchHandler
	Auth            *authmw.Middleware
	UploadDir       string
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/logout", d.AuthHandler.Logout, d.Auth.RequireToken)

	incidents := e.Group("/incidents", d.Auth.RequireToken)
	incidents.POST("", d.IncidentHandler.Create)
	incidents.GET("", d.IncidentHandler.List)
	if d.SearchHandler != nil {
		incidents.GET("/search", d.SearchHandler.Search)
	}
	incidents.GET("/:id", d.IncidentHandler.Get)
	incidents.PUT("/:id", d.IncidentHandler.Update)
	incidents.DELETE("/:id", d.IncidentHandler.Delete)

	e.Static("/uploads", d.UploadDir)
}

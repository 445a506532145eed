// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hmarket/internal/auth"
	"hmarket/internal/http/handlers"
	"hmarket/internal/http/middleware"
	"hmarket/internal/modules/assignment"
	"hmarket/internal/modules/driver"
	"hmarket/internal/modules/order"
)

type RouterDeps struct {
	Order      *order.Service
	Assignment *assignment.Service
	Drivers    *driver.Store
	Verifier   auth.TokenVerifier
	Log        *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Order, deps.Drivers)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders", orderHandler.List)
	api.GET("/orders/:id", orderHandler.Get)
	api.GET("/orders/:id/tracking", orderHandler.Tracking)
	api.POST("/orders/:id/transition", orderHandler.Transition)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	driverHandler := handlers.NewDriverHandler(deps.Assignment, deps.Drivers, deps.Order)
	api.GET("/delivery/available", driverHandler.Available)
	api.POST("/delivery/accept", driverHandler.Accept)
	api.POST("/drivers/availability", driverHandler.Availability)
	api.PUT("/drivers/location", driverHandler.Location)

	return r
}

package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/showgrid/booking/internal/config"
	"github.com/showgrid/booking/internal/handler"    // import the handlers that implement business logic
	"github.com/showgrid/booking/internal/middleware" // import middleware for JWT authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the public seat-availability
// view used by guests browsing a show before logging in.
func RegisterRoutes(e *echo.Echo, b *handler.BookingHandler) {
	// This endpoint can be used by load balancers or monitoring systems to
	// verify that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Live seat map of a show (FREE/HELD/SOLD), no authentication required.
	e.GET("/v1/shows/:id/seats", b.Availability)
}

// RegisterBooking registers the reservation endpoints.  All of them require
// a valid bearer token issued by the external identity service; the Redis
// token-bucket rate limiter is applied on top when a Redis client is
// available (rdb may be nil, which disables limiting).
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	// JWT first so the rate limiter can key on the authenticated user.
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// Hold seats for a show; all-or-nothing.
	g.POST("/shows/:id/reservations", b.Reserve)
	// Initiate payment for a held booking.
	g.POST("/bookings/:id/payment", b.Pay)
	// Cancel a booking that has not been finalized yet.
	g.DELETE("/bookings/:id", b.Cancel)
	// Read a booking's current state.
	g.GET("/bookings/:id", b.GetBooking)
}

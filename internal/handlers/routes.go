package handlers

import (
	"context"
	"net/http"

	"ticket-checkout/models"
	"ticket-checkout/security"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports a dependency failure as a non-nil error.
type HealthCheck func(ctx context.Context) error

type Routes struct {
	Payments *PaymentHandler
	Auth     *AuthHandler
	Admin    *AdminHandler
	JWT      *security.JWT

	// Limiter is optional; without it no rate limiting is applied.
	Limiter *security.RateLimiter

	Health  map[string]HealthCheck
	Metrics bool
}

func (r Routes) limit(prefix string) []echo.MiddlewareFunc {
	if r.Limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{r.Limiter.AntiBotMiddleware(), r.Limiter.Limit(prefix)}
}

func (r Routes) Register(e *echo.Echo) {
	api := e.Group("/api/v1")

	auth := api.Group("/auth", r.limit("auth")...)
	auth.POST("/login", r.Auth.Login)
	auth.GET("/lockout", r.Auth.LockoutInfo)

	payments := api.Group("/payments")
	payments.POST("/validate-card", r.Payments.ValidateCard, r.limit("validate")...)

	authed := append([]echo.MiddlewareFunc{r.JWT.RequireAuth()}, r.limit("payments")...)
	payments.POST("/process", r.Payments.ProcessPayment, authed...)
	payments.GET("/:reference/status", r.Payments.PaymentStatus, authed...)
	payments.GET("/available-tickets", r.Payments.AvailableTickets, authed...)

	admin := api.Group("/admin", r.JWT.RequireAuth(), security.RequireRole(models.RoleAdmin))
	admin.POST("/users/:id/lockout/reset", r.Admin.ResetLockout)

	e.GET("/health", r.health)
	if r.Metrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
}

func (r Routes) health(c echo.Context) error {
	ctx := c.Request().Context()
	for name, check := range r.Health {
		if err := check(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":    "unhealthy",
				"component": name,
				"error":     err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
